package rag

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("chooseStrategy", func() {
	It("takes short messages inline", func() {
		Expect(chooseStrategy("quick question about coffee")).To(Equal(CombinationInline))
	})

	It("appends a context block to long messages", func() {
		long := strings.Repeat("word ", 150)
		Expect(chooseStrategy(long)).To(Equal(CombinationContextual))
	})

	It("augments everything in between", func() {
		medium := strings.Repeat("word ", 50)
		Expect(chooseStrategy(medium)).To(Equal(CombinationAugmented))
	})
})

var _ = Describe("combine", func() {
	It("splices inline after the first sentence boundary", func() {
		out := combine("I love coffee. What should I try next?", "Blue Bottle pour-over", CombinationInline)
		Expect(out).To(Equal("I love coffee. Blue Bottle pour-over. What should I try next?"))
	})

	It("appends inline when there is no sentence boundary", func() {
		out := combine("recommend a roast", "Blue Bottle pour-over", CombinationInline)
		Expect(out).To(Equal("recommend a roast. Blue Bottle pour-over."))
	})

	It("suffixes augmented content", func() {
		out := combine("a question", "an aside", CombinationAugmented)
		Expect(out).To(Equal("a question\n\nYou might also be interested in: an aside"))
	})

	It("suffixes contextual content", func() {
		out := combine("a question", "background", CombinationContextual)
		Expect(out).To(Equal("a question\n\nRelevant context: background"))
	})

	It("treats unknown strategies as contextual", func() {
		out := combine("a question", "background", CombinationStrategy("bogus"))
		Expect(out).To(ContainSubstring("Relevant context: background"))
	})
})
