package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// DefaultMaxTurns bounds the tool-calling loop.
const DefaultMaxTurns = 5

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	// Properties is the JSON schema "properties" object of the input.
	Properties map[string]any
	Required   []string
	Call       func(ctx context.Context, args map[string]any) (string, error)
}

// ToolCall records one call the model made.
type ToolCall struct {
	Name   string
	Input  map[string]any
	Output string
	Err    error
}

// AgentResult is the outcome of RunAgent.
type AgentResult struct {
	Answer    string
	ToolCalls []ToolCall
	Turns     int
}

// RunAgent lets the model answer question, calling tools as it sees fit,
// until it stops asking for tools or maxTurns replies have been received.
// A failing tool is reported back to the model as an error result rather
// than aborting the loop.
func (c *Client) RunAgent(ctx context.Context, system, question string, tools []Tool, maxTurns int) (*AgentResult, error) {
	if maxTurns < 1 {
		maxTurns = DefaultMaxTurns
	}
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	toolParams := toolUnion(tools)

	result := &AgentResult{}
	conversation := []anthropic.MessageParam{userText(question)}
	for result.Turns < maxTurns {
		message, err := c.send(ctx, system, conversation, toolParams)
		if err != nil {
			return result, err
		}
		result.Turns++

		modelResponse := make([]anthropic.ContentBlockParamUnion, 0, len(message.Content))
		for _, block := range message.Content {
			modelResponse = append(modelResponse, block.ToParam())
		}
		conversation = append(conversation, anthropic.MessageParam{
			Content: modelResponse,
			Role:    anthropic.MessageParamRoleAssistant,
		})

		if message.StopReason != anthropic.StopReasonToolUse {
			result.Answer = textOf(message)
			return result, nil
		}

		toolResults := make([]anthropic.ContentBlockParamUnion, 0)
		for _, block := range message.Content {
			variant, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok {
				continue
			}
			call := c.callTool(ctx, byName, variant)
			result.ToolCalls = append(result.ToolCalls, call)

			text := call.Output
			if call.Err != nil {
				text = call.Err.Error()
			}
			toolResults = append(toolResults, anthropic.ContentBlockParamUnion{
				OfToolResult: &anthropic.ToolResultBlockParam{
					ToolUseID: variant.ID,
					IsError:   anthropic.Bool(call.Err != nil),
					Content: []anthropic.ToolResultBlockParamContentUnion{{
						OfText: &anthropic.TextBlockParam{Text: text},
					}},
				},
			})
		}
		conversation = append(conversation, anthropic.MessageParam{
			Content: toolResults,
			Role:    anthropic.MessageParamRoleUser,
		})
	}
	return result, fmt.Errorf("no final answer after %d turns", maxTurns)
}

func (c *Client) callTool(ctx context.Context, byName map[string]Tool, use anthropic.ToolUseBlock) ToolCall {
	call := ToolCall{Name: use.Name}
	if len(use.Input) > 0 {
		if err := json.Unmarshal(use.Input, &call.Input); err != nil {
			call.Err = fmt.Errorf("decode tool input: %w", err)
			return call
		}
	}
	tool, ok := byName[use.Name]
	if !ok {
		call.Err = fmt.Errorf("unknown tool %s", use.Name)
		return call
	}
	c.logger.Info("calling tool", "tool", use.Name, "input", call.Input)
	call.Output, call.Err = tool.Call(ctx, call.Input)
	if call.Err != nil {
		c.logger.Warn("tool failed", "tool", use.Name, "error", call.Err)
	}
	return call
}

func toolUnion(tools []Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	anTools := make([]anthropic.ToolUnionParam, len(tools))
	for idx, val := range tools {
		props := val.Properties
		if props == nil {
			props = map[string]any{}
		}
		anTools[idx] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name: val.Name,
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   val.Required,
					Type:       constant.Object("object"),
				},
				Description: anthropic.String(val.Description),
			},
		}
	}
	return anTools
}
