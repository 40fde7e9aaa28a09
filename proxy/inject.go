package proxy

import (
	"github.com/ImogeneOctaviap794/Toolify-code/promptsynth"
	"github.com/ImogeneOctaviap794/Toolify-code/types"
)

// prepareUpstreamRequest derives the per-candidate request actually sent
// upstream: the model name is rewritten through the candidate's own
// model_mapping, and if this candidate's effective inject_function_calling
// is on and the client supplied tools, the XML tool-call grammar is
// synthesized into the system prompt and tools/tool_choice are stripped
// per spec.md §4.7 ("synthesize and prepend the tool-prompt and strip
// tools from the upstream request").
func prepareUpstreamRequest(req types.Request, svc types.UpstreamService, globalInject bool) (candReq types.Request, systemPrompt string) {
	candReq = req
	candReq.Model = svc.MappedModel(req.Model)

	inject := svc.ShouldInject(globalInject) && len(req.Tools) > 0
	candReq.Injected = inject
	if !inject {
		return candReq, ""
	}

	variant := promptsynth.VariantDetailed
	if svc.OptimizePrompt {
		variant = promptsynth.VariantOptimized
	}
	systemPrompt = promptsynth.Synthesize(req.Tools, variant)

	if candReq.System != "" {
		candReq.System = systemPrompt + "\n\n" + candReq.System
	} else {
		candReq.System = systemPrompt
	}
	candReq.Tools = nil
	candReq.ToolChoice = types.ToolChoice{}

	return candReq, systemPrompt
}
