package ai

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("New", func() {
	var keys *mockKeys

	BeforeEach(func() {
		keys = newMockKeys()
	})

	DescribeTable("builds each backend",
		func(t ProviderType, name string) {
			p, err := New(t, keys)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Name()).To(Equal(name))
		},
		Entry("openrouter", ProviderOpenRouter, "OpenRouter"),
		Entry("openai", ProviderOpenAI, "OpenAI GPT-4o"),
		Entry("anthropic", ProviderAnthropic, "Anthropic Claude"),
		Entry("gemini", ProviderGemini, "Google Gemini"),
	)

	It("rejects an unknown provider", func() {
		_, err := New(ProviderType("mistral"), keys)
		Expect(err).To(MatchError("unknown provider: mistral"))
	})

	It("does not touch the key store while constructing", func() {
		_, err := New(ProviderOpenAI, keys)
		Expect(err).NotTo(HaveOccurred())
		Expect(keys.calls).To(BeZero())
	})
})

var _ = Describe("Factory", func() {
	It("applies per-type options", func() {
		f := &Factory{
			Keys: newMockKeys(),
			Options: map[ProviderType][]Option{
				ProviderOpenAI: {WithModel("gpt-4o-mini")},
			},
		}
		p, err := f.Provider(ProviderOpenAI)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.(*OpenAI).opts.model).To(Equal("gpt-4o-mini"))
	})
})

var _ = Describe("ParseProviderType", func() {
	It("accepts known identifiers regardless of case and spacing", func() {
		t, err := ParseProviderType("  Anthropic ")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(ProviderAnthropic))
	})

	It("rejects unknown identifiers", func() {
		_, err := ParseProviderType("bard")
		Expect(err).To(MatchError("unknown provider: bard"))
	})
})

var _ = Describe("ProviderType.DisplayName", func() {
	It("names the vendors", func() {
		Expect(ProviderOpenRouter.DisplayName()).To(Equal("OpenRouter"))
		Expect(ProviderOpenAI.DisplayName()).To(Equal("OpenAI"))
		Expect(ProviderAnthropic.DisplayName()).To(Equal("Anthropic"))
		Expect(ProviderGemini.DisplayName()).To(Equal("Gemini"))
	})
})
