package wikid

import (
	"errors"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/wikid/internal/confluence"
	"pkt.systems/wikid/internal/oauth"
)

// textResult wraps a message as the single text content of a tool result.
func textResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

// toolMessageError carries a ready-to-show message across the SDK error
// boundary; the SDK renders Error() as the tool's text content with
// isError set on the result.
type toolMessageError struct {
	msg string
}

func (e toolMessageError) Error() string { return e.msg }

// toolMessagef builds a handler error whose text reaches the agent verbatim.
func toolMessagef(format string, args ...any) error {
	return toolMessageError{msg: fmt.Sprintf(format, args...)}
}

// friendlyToolMessage renders a handler error as the single text message a
// tool call surfaces, so agents never see raw wrapped error chains.
func friendlyToolMessage(err error, mode confluence.AuthMode) string {
	var msgErr toolMessageError
	if errors.As(err, &msgErr) {
		return msgErr.msg
	}
	var apiErr *confluence.APIError
	if errors.As(err, &apiErr) {
		return apiErr.FriendlyMessage(mode)
	}
	var refreshErr *oauth.RefreshError
	if errors.As(err, &refreshErr) {
		return fmt.Sprintf("Authentication failed — token refresh rejected with HTTP %d. The refresh token may be expired or revoked.", refreshErr.Status)
	}
	var resolveErr *confluence.ResolveError
	if errors.As(err, &resolveErr) {
		return "Could not resolve page ID from: " + resolveErr.Input
	}
	return strings.TrimSpace(err.Error())
}
