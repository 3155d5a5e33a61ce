package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"lecnote/internal/config"
)

func TestOpenAIClient(t *testing.T) {
	convey.Convey("Given an OpenAI-compatible server", t, func() {
		var got chatRequest
		var auth string
		reply := `{"choices":[{"message":{"content":"  # Note\n"}}]}`
		status := http.StatusOK

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			if r.URL.Path != "/v1/chat/completions" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
		convey.Reset(srv.Close)

		c := NewOpenAIClient(srv.URL+"/v1/", "sk-test", time.Second)
		req := Request{Model: "m", System: "sys", User: "usr", Temperature: 0.2, MaxTokens: 100}

		convey.Convey("When the call succeeds", func() {
			out, err := c.Complete(context.Background(), req)

			convey.Convey("Then the trimmed content is returned and the request is well formed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldEqual, "# Note")
				convey.So(auth, convey.ShouldEqual, "Bearer sk-test")
				convey.So(got.Model, convey.ShouldEqual, "m")
				convey.So(got.Temperature, convey.ShouldEqual, 0.2)
				convey.So(got.MaxTokens, convey.ShouldEqual, 100)
				convey.So(len(got.Messages), convey.ShouldEqual, 2)
				convey.So(got.Messages[0], convey.ShouldResemble, chatMessage{Role: "system", Content: "sys"})
				convey.So(got.Messages[1], convey.ShouldResemble, chatMessage{Role: "user", Content: "usr"})
			})
		})

		convey.Convey("When the model returns empty content", func() {
			reply = `{"choices":[{"message":{"content":"   "}}]}`
			_, err := c.Complete(context.Background(), req)

			convey.Convey("Then ErrEmptyResponse is returned", func() {
				convey.So(errors.Is(err, ErrEmptyResponse), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the API reports an error", func() {
			status = http.StatusTooManyRequests
			reply = `{"error":{"message":"rate limited","type":"requests"}}`
			_, err := c.Complete(context.Background(), req)

			convey.Convey("Then the API message is surfaced", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "rate limited")
				convey.So(err.Error(), convey.ShouldContainSubstring, "429")
			})
		})
	})

	convey.Convey("New rejects unknown providers", t, func() {
		_, err := New(context.Background(), config.LLMConfig{Provider: "nope"})
		convey.So(err, convey.ShouldNotBeNil)

		c, err := New(context.Background(), config.LLMConfig{Provider: config.ProviderOpenAI})
		convey.So(err, convey.ShouldBeNil)
		convey.So(c, convey.ShouldHaveSameTypeAs, &OpenAIClient{})

		_, err = New(context.Background(), config.LLMConfig{Provider: config.ProviderGemini})
		convey.So(err, convey.ShouldNotBeNil)
	})
}
