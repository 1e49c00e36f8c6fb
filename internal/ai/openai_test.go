package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("OpenAI", func() {
	var (
		server   *ghttp.Server
		provider *OpenAI
		captured chatRequest
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		provider = NewOpenAI(newMockKeys("openai", "sk-test"), WithBaseURL(server.URL()))
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/chat/completions"),
			ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
			func(w http.ResponseWriter, r *http.Request) {
				body, err := io.ReadAll(r.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &captured)).To(Succeed())
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, chatEnvelope(validAnalysis)),
		))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("AnalyzeBill", func() {
		JustBeforeEach(func() {
			_, err := provider.AnalyzeBill(context.Background(), "aW1hZ2U=")
			Expect(err).NotTo(HaveOccurred())
		})

		It("asks for a JSON object response", func() {
			Expect(captured.ResponseFormat).NotTo(BeNil())
			Expect(captured.ResponseFormat.Type).To(Equal("json_object"))
		})

		It("uses the default model and token limit", func() {
			Expect(captured.Model).To(Equal("gpt-4o"))
			Expect(captured.MaxTokens).To(Equal(4096))
		})

		It("sends the prompt then the image as a data URL", func() {
			Expect(captured.Messages).To(HaveLen(1))
			parts, ok := captured.Messages[0].Content.([]any)
			Expect(ok).To(BeTrue())
			Expect(parts).To(HaveLen(2))
			Expect(parts[0]).To(HaveKeyWithValue("type", "text"))
			Expect(parts[1]).To(HaveKeyWithValue("type", "image_url"))
			Expect(parts[1]).To(HaveKeyWithValue("image_url", map[string]any{
				"url":    "data:image/jpeg;base64,aW1hZ2U=",
				"detail": "high",
			}))
		})
	})

	Describe("GenerateScript", func() {
		BeforeEach(func() {
			server.SetHandler(0, ghttp.CombineHandlers(
				func(w http.ResponseWriter, r *http.Request) {
					body, err := io.ReadAll(r.Body)
					Expect(err).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &captured)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatEnvelope(`{"sections":[],"keyPoints":[]}`)),
			))
		})

		It("sends the rendered prompt as plain text", func() {
			_, err := provider.GenerateScript(context.Background(), "Acme Wireless", nil, 1000)
			Expect(err).NotTo(HaveOccurred())
			content, ok := captured.Messages[0].Content.(string)
			Expect(ok).To(BeTrue())
			Expect(content).To(ContainSubstring("Provider: Acme Wireless"))
			Expect(content).To(ContainSubstring("Total potential savings: $10.00"))
		})
	})
})
