package webhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// HTTPResponder forwards unmatched text to a chat backend that accepts
// {"text": ...} and answers {"reply": ...}.
type HTTPResponder struct {
	Client *resty.Client
	URL    string
}

type replyBody struct {
	Reply string `json:"reply"`
}

func (r *HTTPResponder) Reply(ctx context.Context, text string) (string, error) {
	var out replyBody
	resp, err := r.Client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		SetResult(&out).
		Post(r.URL)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", r.URL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("post %s: %s", r.URL, resp.Status())
	}
	reply := strings.TrimSpace(out.Reply)
	if reply == "" {
		return "", fmt.Errorf("post %s: empty reply", r.URL)
	}
	return reply, nil
}
