package adapter

import (
	"sort"
	"strconv"
	"strings"
)

// BuildEngineerPrompt renders the engineer role template (§4.4): check
// inbox first, work the task, ask humans when blocked, save discoveries,
// surface conventions and context.
func BuildEngineerPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are an engineering agent on team " + in.TeamID + " (agent_id=" + in.AgentID + ").\n\n")
	b.WriteString("Task #" + strconv.FormatInt(in.TaskID, 10) + ": " + in.TaskTitle + "\n")
	if in.TaskDescription != "" {
		b.WriteString(in.TaskDescription + "\n")
	}
	b.WriteString("\nCheck your inbox first — review feedback on this task arrives there.\n")
	b.WriteString("Work the task to completion. When done, transition it to in_review.\n")
	b.WriteString("If you are blocked on something only a human can answer, ask via the bridge.\n")
	b.WriteString("Save any non-obvious discoveries to the task's context by key so later attempts don't repeat the work.\n")
	b.WriteString("Send messages to other agents or humans as needed.\n")
	writeConventions(&b, in.Conventions)
	writeContext(&b, in.Context)
	return b.String()
}

// BuildManagerPrompt renders the manager role template: decompose into
// sub-tasks, assign them, escalate, and close out the parent.
func BuildManagerPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are a manager agent on team " + in.TeamID + " (agent_id=" + in.AgentID + ").\n\n")
	b.WriteString("Task #" + strconv.FormatInt(in.TaskID, 10) + ": " + in.TaskTitle + "\n")
	if in.TaskDescription != "" {
		b.WriteString(in.TaskDescription + "\n")
	}
	b.WriteString("\nList the team's agents and their current status.\n")
	b.WriteString("Decompose this task into sub-tasks and create them as a single batch, declaring dependencies between them by position when one sub-task must wait on another.\n")
	b.WriteString("Assign each sub-task to a suitable agent.\n")
	b.WriteString("You may wait for sub-tasks to complete before proceeding, and should escalate to a human if the team is stuck.\n")
	b.WriteString("Once every sub-task is done, mark this task complete.\n")
	writeConventions(&b, in.Conventions)
	writeContext(&b, in.Context)
	return b.String()
}

// BuildReviewerPrompt renders the reviewer role template: fetch the diff,
// leave file-anchored comments, and submit a verdict.
func BuildReviewerPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are a reviewer agent on team " + in.TeamID + " (agent_id=" + in.AgentID + ").\n\n")
	b.WriteString("Task #" + strconv.FormatInt(in.TaskID, 10) + ": " + in.TaskTitle + "\n")
	b.WriteString("\nRead your inbox for the review request.\n")
	b.WriteString("Fetch the diff, the list of changed files, and the contents of those files.\n")
	b.WriteString("Leave file-anchored comments (file:line) for specific issues, and general comments otherwise.\n")
	b.WriteString("Submit a verdict of approve or request_changes.\n")
	writeConventions(&b, in.Conventions)
	writeContext(&b, in.Context)
	return b.String()
}

func writeConventions(b *strings.Builder, conventions []ConventionEntry) {
	if len(conventions) == 0 {
		return
	}
	b.WriteString("\nTeam conventions:\n")
	for _, c := range conventions {
		b.WriteString("- " + c.Key + ": " + c.Content + "\n")
	}
}

func writeContext(b *strings.Builder, context map[string]string) {
	if len(context) == 0 {
		return
	}
	b.WriteString("\nSaved context:\n")
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("- " + k + ": " + context[k] + "\n")
	}
}

// BuildPrompt dispatches to the role-specific template.
func BuildPrompt(role string, in PromptInput) string {
	switch role {
	case "manager":
		return BuildManagerPrompt(in)
	case "reviewer":
		return BuildReviewerPrompt(in)
	default:
		return BuildEngineerPrompt(in)
	}
}
