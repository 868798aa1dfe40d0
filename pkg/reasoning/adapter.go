// Package reasoning asks a chat model for a schedule and validates the shape
// of what comes back. Whether the plan makes sense is checked later by the
// reconciler; this package only guarantees a well-formed envelope.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/harrisonrobin/taskplan/pkg/model"
	"github.com/harrisonrobin/taskplan/pkg/util"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultMaxOutputTokens caps the generated answer when no budget is configured.
const DefaultMaxOutputTokens = 1500

// Generator is the slice of an eino chat model the adapter needs.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

const systemPrompt = "You are an intelligent productivity assistant that schedules tasks into a user's free time. You answer with a single JSON object and nothing else."

const planSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["scheduled_tasks", "reasoning", "today"],
  "properties": {
    "scheduled_tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["task_id", "start_time", "end_time"],
        "properties": {
          "task_id": { "type": "string", "minLength": 1 },
          "start_time": { "type": "string", "minLength": 1 },
          "end_time": { "type": "string", "minLength": 1 }
        }
      }
    },
    "reasoning": { "type": "string" },
    "today": { "type": "string" }
  }
}`

var planSchemaLoader = gojsonschema.NewStringLoader(planSchemaJSON)

type planEnvelope struct {
	ScheduledTasks []struct {
		TaskID    string `json:"task_id"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	} `json:"scheduled_tasks"`
	Reasoning string `json:"reasoning"`
	Today     string `json:"today"`
}

// Adapter turns a ScheduleRequest into a validated Plan using a Generator.
type Adapter struct {
	gen       Generator
	maxTokens int
	log       zerolog.Logger
}

// NewAdapter returns an Adapter capping each completion at maxTokens.
func NewAdapter(gen Generator, maxTokens int, log zerolog.Logger) *Adapter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return &Adapter{gen: gen, maxTokens: maxTokens, log: log}
}

// Plan sends req to the model and returns the parsed plan. Every failure is a
// *ReasoningServiceError.
func (a *Adapter) Plan(ctx context.Context, req *model.ScheduleRequest) (*model.Plan, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, &ReasoningServiceError{Reason: "render prompt", Err: err}
	}

	a.log.Debug().Int("tasks", len(req.Tasks)).Int("max_tokens", a.maxTokens).Msg("requesting plan")
	resp, err := a.gen.Generate(ctx,
		[]*schema.Message{schema.SystemMessage(systemPrompt), schema.UserMessage(prompt)},
		einomodel.WithMaxTokens(a.maxTokens),
	)
	if err != nil {
		return nil, &ReasoningServiceError{Reason: "generate", Err: err}
	}
	if resp == nil {
		return nil, &ReasoningServiceError{Reason: "empty response"}
	}
	a.log.Trace().Str("content", resp.Content).Msg("plan response")

	return ParsePlan(resp.Content, req.Location)
}

// ParsePlan validates raw model output against the plan envelope and converts
// its timestamps, reading zone-less times in loc. A single surrounding code
// fence is removed; any other text around the JSON object is rejected.
func ParsePlan(raw string, loc *time.Location) (*model.Plan, error) {
	if loc == nil {
		loc = time.Local
	}
	payload := stripFence(raw)
	if !json.Valid([]byte(payload)) {
		return nil, &ReasoningServiceError{Reason: "response is not JSON"}
	}

	result, err := gojsonschema.Validate(planSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, &ReasoningServiceError{Reason: "schema validation", Err: err}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &ReasoningServiceError{Reason: "response does not match plan schema: " + strings.Join(issues, "; ")}
	}

	var env planEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return nil, &ReasoningServiceError{Reason: "decode plan", Err: err}
	}

	plan := &model.Plan{
		Assignments: make([]model.Assignment, 0, len(env.ScheduledTasks)),
		Reasoning:   env.Reasoning,
		Today:       env.Today,
	}
	for i, st := range env.ScheduledTasks {
		start, err := util.ParsePromptTime(st.StartTime, loc)
		if err != nil {
			return nil, &ReasoningServiceError{Reason: fmt.Sprintf("scheduled_tasks[%d].start_time", i), Err: err}
		}
		end, err := util.ParsePromptTime(st.EndTime, loc)
		if err != nil {
			return nil, &ReasoningServiceError{Reason: fmt.Sprintf("scheduled_tasks[%d].end_time", i), Err: err}
		}
		plan.Assignments = append(plan.Assignments, model.Assignment{TaskID: st.TaskID, Start: start, End: end})
	}
	return plan, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s[3:], "```")
	// Drop an info string such as "json" on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if info := strings.TrimSpace(s[:nl]); info == "" || !strings.ContainsAny(info, "{[") {
			s = s[nl+1:]
		}
	}
	return strings.TrimSpace(s)
}

// RenderPrompt produces the user message for req.
func RenderPrompt(req *model.ScheduleRequest) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(req); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schedule the user's tasks into their free time between %s and %s (%s).\n\n",
		req.Context.HorizonStart, req.Context.HorizonEnd, req.Context.Timezone)
	b.WriteString("Rules:\n")
	b.WriteString("- Tasks are listed in priority order, most urgent first. Place urgent tasks earlier.\n")
	b.WriteString("- Only use the intervals in free_times. Never overlap busy_times or another scheduled task.\n")
	b.WriteString("- Each slot should last about estimated_time_hours and finish before the task's due_date where possible.\n")
	b.WriteString("- Take the user's goals in context into account.\n")
	b.WriteString("- Use only task ids from the tasks list. You may leave a task unscheduled if it does not fit.\n")
	fmt.Fprintf(&b, "- Write times as \"YYYY-MM-DD HH:MM:SS\" in %s.\n\n", req.Context.Timezone)
	b.WriteString("Input:\n")
	b.Write(buf.Bytes())
	b.WriteString("\nRespond with exactly one JSON object of this form and no other text:\n")
	b.WriteString(`{"scheduled_tasks": [{"task_id": "<id>", "start_time": "YYYY-MM-DD HH:MM:SS", "end_time": "YYYY-MM-DD HH:MM:SS"}], "reasoning": "<why the tasks were placed this way>", "today": "<short summary of what the user should do today>"}`)
	b.WriteString("\n")
	return b.String(), nil
}
