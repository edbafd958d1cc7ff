package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/rag"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerateRequest is the inbound generation request.
type GenerateRequest struct {
	Message        string         `json:"message"`
	UserID         string         `json:"user_id"`
	Modality       string         `json:"modality"`
	ModalityParams map[string]any `json:"modality_params"`
	Constraints    struct {
		SemanticThreshold float64 `json:"semantic_threshold"`
		MaxInjections     int     `json:"max_injections"`
	} `json:"constraints"`
}

// GenerateResponse is the outbound generation result. Status is "completed",
// "error", or "timeout"; a timeout means the task may still be running.
type GenerateResponse struct {
	Status           string        `json:"status"`
	TaskID           string        `json:"task_id"`
	Content          string        `json:"content,omitempty"`
	SemanticDelta    *DeltaSummary `json:"semantic_delta,omitempty"`
	ProcessingTimeMS int64         `json:"processing_time_ms,omitempty"`
	InjectionCount   int           `json:"injection_count"`
	Error            string        `json:"error,omitempty"`
}

// DeltaSummary is the wire form of a semantic delta.
type DeltaSummary struct {
	CosineSimilarity float64 `json:"cosine_similarity"`
	CompositeDelta   float64 `json:"composite_delta"`
	IsWithinBounds   bool    `json:"is_within_bounds"`
}

// InjectionRequest registers a new injection.
type InjectionRequest struct {
	Content    string         `json:"content"`
	ProviderID string         `json:"provider_id"`
	Metadata   map[string]any `json:"metadata"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGenerate submits a pipeline task and waits for its result. A wait
// that exceeds the configured timeout reports status "timeout" rather than
// "error": the task keeps running and its result stays indexed.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	msg := agent.NewMessage("user", req.Message)
	msg.Metadata["user_id"] = req.UserID
	if req.Modality != "" {
		msg.Metadata["modality"] = req.Modality
	}
	for k, v := range req.ModalityParams {
		msg.Metadata[k] = v
	}
	if req.Constraints.SemanticThreshold > 0 {
		msg.Metadata["semantic_threshold"] = req.Constraints.SemanticThreshold
	}
	if req.Constraints.MaxInjections > 0 {
		msg.Metadata["max_injections"] = float64(req.Constraints.MaxInjections)
	}

	taskID, err := s.manager.Submit(s.pipeline.ID(), msg, 0, nil)
	if err != nil {
		s.logger.Error("generation submit failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "submission failed"})
	}

	taskResult, err := s.manager.GetResult(taskID, s.config.ResultTimeout)
	if err != nil {
		if errors.Is(err, agent.ErrResultTimeout) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(GenerateResponse{
				Status: "timeout",
				TaskID: taskID,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "waiting for result failed"})
	}

	if taskResult.Status != agent.StatusCompleted {
		return c.Status(fiber.StatusInternalServerError).JSON(GenerateResponse{
			Status: "error",
			TaskID: taskID,
			Error:  taskResult.Error,
		})
	}

	result, ok := taskResult.Result.(*rag.Result)
	if !ok {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "unexpected result payload"})
	}

	return c.JSON(GenerateResponse{
		Status:  "completed",
		TaskID:  taskID,
		Content: result.Content,
		SemanticDelta: &DeltaSummary{
			CosineSimilarity: result.Delta.CosineSimilarity,
			CompositeDelta:   result.Delta.CompositeDelta,
			IsWithinBounds:   result.Delta.IsWithinBounds,
		},
		ProcessingTimeMS: result.ProcessingTime.Milliseconds(),
		InjectionCount:   result.InjectionCount,
	})
}

// handleAddInjection registers injection content for retrieval.
func (s *Server) handleAddInjection(c *fiber.Ctx) error {
	var req InjectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "content is required"})
	}

	id, err := s.pipeline.Pipeline().AddInjection(c.Context(), req.Content, req.ProviderID, req.Metadata)
	if err != nil {
		s.logger.Error("injection registration failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "injection registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(map[string]any{"id": id})
}

// handleListInjections returns every stored injection.
func (s *Server) handleListInjections(c *fiber.Ctx) error {
	messages := s.store.All()
	return c.JSON(map[string]any{
		"count":      len(messages),
		"injections": messages,
	})
}

// handleMetrics returns pipeline metrics and per-agent statistics.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	agents := make(map[string]agent.Stats)
	for _, id := range s.manager.Agents() {
		agents[id] = s.manager.AgentStats(id)
	}

	return c.JSON(map[string]any{
		"pipeline": s.pipeline.Metrics(),
		"store":    s.store.Statistics(),
		"agents":   agents,
	})
}
