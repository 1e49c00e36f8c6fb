package ai

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RemoteError", func() {
	DescribeTable("classifies the status",
		func(status int, unauthorized, rateLimited, serverError bool) {
			err := &RemoteError{Provider: "OpenAI", StatusCode: status, Body: "body"}
			Expect(err.IsUnauthorized()).To(Equal(unauthorized))
			Expect(err.IsRateLimited()).To(Equal(rateLimited))
			Expect(err.IsServerError()).To(Equal(serverError))
		},
		Entry("401", 401, true, false, false),
		Entry("403", 403, true, false, false),
		Entry("429", 429, false, true, false),
		Entry("500", 500, false, false, true),
		Entry("400", 400, false, false, false),
	)

	It("formats the vendor, status and body", func() {
		err := &RemoteError{Provider: "OpenRouter", StatusCode: 502, Body: "bad gateway"}
		Expect(err.Error()).To(Equal("OpenRouter API error (502): bad gateway"))
	})

	It("survives wrapping", func() {
		wrapped := fmt.Errorf("analyzing bill: %w", &RemoteError{StatusCode: 429})
		var remoteErr *RemoteError
		Expect(errors.As(wrapped, &remoteErr)).To(BeTrue())
		Expect(remoteErr.IsRateLimited()).To(BeTrue())
	})
})

var _ = Describe("ParseError", func() {
	It("unwraps to the decoder error", func() {
		inner := errors.New("unexpected end of JSON input")
		err := &ParseError{Provider: "OpenAI", Err: inner}
		Expect(errors.Is(err, inner)).To(BeTrue())
	})
})
