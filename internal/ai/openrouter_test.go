package ai

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("OpenRouter", func() {
	var (
		server   *ghttp.Server
		provider *OpenRouter
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		provider = NewOpenRouter(newMockKeys("openrouter", "or-test"), WithBaseURL(server.URL()))
	})

	AfterEach(func() {
		server.Close()
	})

	When("the vendor returns a bare JSON completion", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer or-test"),
				ghttp.VerifyHeaderKV("HTTP-Referer", "https://billbuster.app"),
				ghttp.VerifyHeaderKV("X-Title", "BillBuster"),
				ghttp.RespondWith(http.StatusOK, `{"choices":[{"message":{"content":"{\"provider\":\"Acme Electric\",\"category\":\"electric\",\"totalAmount\":15099,\"billDate\":\"2024-03-01\",\"lineItems\":[],\"findings\":[],\"summary\":\"ok\",\"overallRiskScore\":20,\"totalIdentifiedSavings\":0}"}}]}`),
			))
		})

		It("returns the analysis with the exact cent total", func() {
			resp, err := provider.AnalyzeBill(context.Background(), "aW1hZ2U=")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.TotalAmount).To(Equal(15099))
			Expect(resp.BillDate).To(Equal("2024-03-01"))
			Expect(resp.OverallRiskScore).To(Equal(20))
		})
	})

	When("a model override is given", func() {
		BeforeEach(func() {
			provider = NewOpenRouter(newMockKeys("openrouter", "or-test"), WithBaseURL(server.URL()), WithModel("anthropic/claude-sonnet-4.5"))
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyJSON(`{"model":"anthropic/claude-sonnet-4.5","max_tokens":4096,"messages":[{"role":"user","content":"x"}]}`),
				ghttp.RespondWith(http.StatusOK, `{}`),
			))
		})

		It("sends the override without a response_format", func() {
			err := provider.callAPI(context.Background(), textMessages("x"), &ScriptGenerationResponse{})
			Expect(err).To(MatchError("No response from OpenRouter"))
		})
	})

	Describe("ValidateKey", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodGet, "/models"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer candidate"),
				ghttp.RespondWith(http.StatusOK, `{"data":[]}`),
			))
		})

		It("lists models with the candidate key", func() {
			Expect(provider.ValidateKey(context.Background(), "candidate")).To(Equal(KeyCheck{OK: true, Message: "Key is valid"}))
		})
	})
})
