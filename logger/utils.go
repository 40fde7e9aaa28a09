package logger

import (
	"context"
	"encoding/json"

	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// Common emoji constants for different log types (maintaining existing visual style)
const (
	EmojiReceived = "📨"
	EmojiTool     = "🔧"
	EmojiTarget   = "🎯"
	EmojiStream   = "🌊"
	EmojiSuccess  = "✅"
	EmojiLaunch   = "🚀"
	EmojiUser     = "👤"
	EmojiSystem   = "📋"
	EmojiInject   = "💉"
	EmojiAlert    = "🚨"
	EmojiStats    = "📊"
)

// Specialized logging functions for common proxy operations.

// LogRequest logs an incoming request with model and tool count.
func LogRequest(ctx context.Context, logger Logger, model string, toolCount int) {
	logger.WithModel(model).Info("%s Received request for model: %s, tools: %d", EmojiReceived, model, toolCount)
}

// LogModelRouting logs model routing decisions.
func LogModelRouting(ctx context.Context, logger Logger, model, upstream string) {
	logger.Info("%s Model %s → Upstream: %s", EmojiTarget, model, upstream)
}

// LogToolUsed logs when a tool is used in a response.
func LogToolUsed(ctx context.Context, logger Logger, toolName, toolID string) {
	logger.Info("%s Tool used in response: %s(id=%s)", EmojiTarget, toolName, toolID)
}

// LogResponseSummary logs a summary of the response.
func LogResponseSummary(ctx context.Context, logger Logger, textItems, toolCalls int, stopReason string) {
	logger.Info("%s Response summary: %d text_items, %d tool_calls, stop_reason=%s",
		EmojiSuccess, textItems, toolCalls, stopReason)
}

// LogProxyRequest logs outgoing proxy requests.
func LogProxyRequest(ctx context.Context, logger Logger, endpoint string, streaming bool) {
	logger.Info("%s Proxying to: %s (streaming: %v)", EmojiLaunch, endpoint, streaming)
}

// LogStreamingResponse logs when processing streaming responses.
func LogStreamingResponse(ctx context.Context, logger Logger) {
	logger.Info("%s Processing streaming response...", EmojiStream)
}

// LogNonStreamingResponse logs when receiving non-streaming responses.
func LogNonStreamingResponse(ctx context.Context, logger Logger, choiceCount int) {
	logger.Info("%s Received non-streaming response with %d choices", EmojiSuccess, choiceCount)
}

// LogUserRequest logs user request size.
func LogUserRequest(ctx context.Context, logger Logger, contentLength int) {
	logger.Debug("%s User request: %d", EmojiUser, contentLength)
}

// LogSystemMessage logs system message details.
func LogSystemMessage(ctx context.Context, logger Logger, contentLength int, content string) {
	logger.Debug("%s System message (%d chars):\n%s", EmojiSystem, contentLength, content)
}

// LogInjectionDecision logs whether function-calling XML instructions were
// injected into a request's system prompt for the chosen upstream.
func LogInjectionDecision(ctx context.Context, logger Logger, upstream string, injected bool, toolCount int) {
	if injected {
		logger.Info("%s Injected tool_call grammar for upstream %s (%d tools)", EmojiInject, upstream, toolCount)
		return
	}
	logger.Debug("%s No injection needed for upstream %s (native tool support)", EmojiInject, upstream)
}

// LogToolsTransformed logs tool transformation results.
func LogToolsTransformed(ctx context.Context, logger Logger, transformedCount, originalCount int) {
	logger.Info("%s Transformed %d tools (filtered from %d)", EmojiTool, transformedCount, originalCount)
}

// LogToolSchemas logs tool declarations for debugging.
func LogToolSchemas(ctx context.Context, logger Logger, tools []types.ToolDeclaration) {
	logger.Info("%s Printing %d tool schemas:", EmojiTool, len(tools))
	for i, tool := range tools {
		if toolJSON, err := json.MarshalIndent(tool, "", "  "); err == nil {
			logger.Info("%s Tool[%d] Schema (%s):\n%s", EmojiTool, i, tool.Name, string(toolJSON))
		} else {
			logger.Warn("%s Tool[%d] Schema: failed to marshal to JSON: %v", EmojiTool, i, err)
		}
	}
}

// LogToolNames logs the names of tools being processed.
func LogToolNames(ctx context.Context, logger Logger, toolNames []string) {
	if len(toolNames) <= 5 {
		logger.Debug("     Tools: [%s]", joinStrings(toolNames, ", "))
		return
	}
	logger.Debug("     Tools: [%s, %s, ... and %d more]",
		toolNames[0], toolNames[1], len(toolNames)-2)
}

// LogLargeConversation logs when dealing with large conversations.
func LogLargeConversation(ctx context.Context, logger Logger, messageCount int) {
	logger.Info("%s Large conversation: %d messages", EmojiStats, messageCount)
}

// LogInvalidMessages logs when messages fail validation.
func LogInvalidMessages(ctx context.Context, logger Logger, invalidCount, totalCount int) {
	logger.Warn("%s Found %d potentially invalid messages out of %d total", EmojiAlert, invalidCount, totalCount)
}

// joinStrings joins strings without pulling in strings.Join for this
// small fixed-separator case, matching the teacher's own helper.
func joinStrings(strs []string, separator string) string {
	if len(strs) == 0 {
		return ""
	}
	if len(strs) == 1 {
		return strs[0]
	}

	result := strs[0]
	for i := 1; i < len(strs); i++ {
		result += separator + strs[i]
	}
	return result
}

// ConditionalLogger wraps the common pattern of getting a logger from
// context with config.
func ConditionalLogger(ctx context.Context, cfg interface{}) Logger {
	if logger, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger is a no-operation logger for contexts with no logger set.
type noOpLogger struct{}

func (n *noOpLogger) Debug(format string, args ...interface{}) {}
func (n *noOpLogger) Info(format string, args ...interface{})  {}
func (n *noOpLogger) Warn(format string, args ...interface{})  {}
func (n *noOpLogger) Error(format string, args ...interface{}) {}
func (n *noOpLogger) WithField(key, value string) Logger       { return n }
func (n *noOpLogger) WithModel(model string) Logger            { return n }
func (n *noOpLogger) WithComponent(component string) Logger    { return n }
