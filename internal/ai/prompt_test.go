package ai

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FormatCents", func() {
	It("renders dollars and cents", func() {
		Expect(FormatCents(15099)).To(Equal("$150.99"))
	})

	It("pads single-digit cents", func() {
		Expect(FormatCents(105)).To(Equal("$1.05"))
	})

	It("renders zero", func() {
		Expect(FormatCents(0)).To(Equal("$0.00"))
	})
})

var _ = Describe("renderScriptPrompt", func() {
	var (
		findings []Finding
		prompt   string
		err      error
	)

	BeforeEach(func() {
		findings = []Finding{
			{
				Type:             FindingHiddenFee,
				Severity:         SeverityHigh,
				Title:            "Regulatory recovery fee",
				Description:      "Fee not disclosed at signup",
				EstimatedSavings: 499,
				Confidence:       0.8,
			},
		}
	})

	JustBeforeEach(func() {
		prompt, err = renderScriptPrompt("Acme Wireless", findings, 2599)
	})

	It("should not return an error", func() {
		Expect(err).NotTo(HaveOccurred())
	})

	It("substitutes the provider", func() {
		Expect(prompt).To(ContainSubstring("Provider: Acme Wireless"))
	})

	It("substitutes the findings as indented JSON", func() {
		Expect(prompt).To(ContainSubstring(`"title": "Regulatory recovery fee"`))
		Expect(prompt).To(ContainSubstring(`"estimatedSavings": 499`))
	})

	It("substitutes the total savings in dollars", func() {
		Expect(prompt).To(ContainSubstring("Total potential savings: $25.99"))
	})

	It("leaves no placeholders behind", func() {
		Expect(prompt).NotTo(ContainSubstring("{provider}"))
		Expect(prompt).NotTo(ContainSubstring("{findings}"))
		Expect(prompt).NotTo(ContainSubstring("{totalSavings}"))
	})

	When("there are no findings", func() {
		BeforeEach(func() {
			findings = nil
		})

		It("renders an empty JSON array", func() {
			Expect(prompt).To(ContainSubstring("Issues found: []"))
		})
	})
})
