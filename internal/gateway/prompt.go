package gateway

import (
	"fmt"
	"strings"
)

const competencySystemPrompt = `You are an expert curriculum designer and career coach. Given a learner's goal in any domain (career, fitness, creative, academic), you infer the competencies and subskills required to reach it. Explain in plain language and avoid jargon unless it is necessary.`

func buildCompetencyUserMessage(in CompetencyInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Goal: %s\n", in.Goal))
	b.WriteString(fmt.Sprintf("Description: %s\n", orNA(in.Description)))
	b.WriteString(fmt.Sprintf("Domain hint: %s\n", orNA(in.Domain)))
	b.WriteString(fmt.Sprintf("Level: %s\n", orNA(in.Level)))

	b.WriteString(`
Instructions:
1. Restate the goal as one clear sentence.
2. List the competencies needed to reach it, each with a short local id (c1, c2, ...), a name, a 1-3 sentence description, a type and two example real-world tasks.
3. Cover the goal end to end without duplicating competencies.`)

	return b.String()
}

const dagSystemPrompt = `You are an expert at structuring learning sequences into a directed acyclic graph of prerequisites.`

func buildDagUserMessage(in DagInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Goal: %s\n", in.Goal))
	b.WriteString(fmt.Sprintf("Learner background: %s\n", orNA(in.Background)))

	b.WriteString("\nCompetencies:\n")
	if len(in.Competencies) == 0 {
		b.WriteString("None provided. Derive the units from the goal alone.\n")
	}
	for _, c := range in.Competencies {
		b.WriteString(fmt.Sprintf("- [%s] %s (%s): %s\n", c.ID, c.Name, c.Type, c.Description))
	}

	b.WriteString(`
Instructions:
1. Group and order the competencies into 15-40 learning units. Each unit is a concept, skill, project or meta unit.
2. Give each unit a local id (n1, n2, ...), a title, a description, a node_type, an estimate in minutes for a motivated learner and a few tags.
3. Add an edge {from, to} whenever from must be completed before to. Edges must only use ids from your node list.
4. The edges must not form a cycle. Build up complexity gradually.
5. Summarize the path in 2-3 sentences.`)

	return b.String()
}

const dagQualitySystemPrompt = `You are an expert curriculum evaluator. You judge whether a learning DAG will get a learner to their goal.`

func buildDagQualityUserMessage(in DagQualityInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Goal: %s\n", orNA(in.Goal)))

	b.WriteString("\nUnits:\n")
	for _, n := range in.Dag.Nodes {
		b.WriteString(fmt.Sprintf("- [%s] %s (%s, %d min)\n", n.LocalID, n.Content.Title, n.Content.Type, n.Content.EstimatedMinutes))
	}
	b.WriteString("\nPrerequisites (from -> to):\n")
	if len(in.Dag.Edges) == 0 {
		b.WriteString("None.\n")
	}
	for _, e := range in.Dag.Edges {
		b.WriteString(fmt.Sprintf("- %s -> %s\n", e.From, e.To))
	}

	b.WriteString(`
Instructions:
1. Score Structure (valid, necessary prerequisites), Progression (units build on each other) and Coverage (nothing important missing or duplicated), each from 0 to 5 with a one-line comment.
2. Give an overall score from 0.0 to 1.0.
3. Summarize the evaluation in one or two sentences.`)

	return b.String()
}

const challengeSystemPrompt = `You are an expert instructional designer who creates realistic, scenario-based challenges that prove a learner has acquired a competency.`

func buildChallengeUserMessage(in ChallengeInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Goal: %s\n", orNA(in.Goal)))
	b.WriteString(fmt.Sprintf("Domain hint: %s\n", orNA(in.Domain)))
	b.WriteString(fmt.Sprintf("Learning unit: %s (%s)\n", in.Node.Title, in.Node.Type))
	b.WriteString(fmt.Sprintf("Description: %s\n", orNA(in.Node.Description)))

	b.WriteString(`
Instructions:
Create ONE challenge that:
1. Reflects a real-world task in this domain.
2. Can be answered in text: an explanation, a plan, a critique or a small design.
3. Comes with an outline of the expected answer (3-6 points).
4. Comes with a rubric of 2-4 generic dimensions (e.g. Relevance, Correctness, Clarity) scored 0-5.`)

	return b.String()
}

const gradeSystemPrompt = `You are a supportive, rigorous tutor for any skill or domain. You grade a learner's answer against a rubric and give specific, actionable feedback.`

func buildGradeUserMessage(in GradeInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Challenge:\n%s\n", in.Prompt))

	b.WriteString("\nExpected answer outline:\n")
	if len(in.ExpectedOutline) == 0 {
		b.WriteString("None\n")
	}
	for _, p := range in.ExpectedOutline {
		b.WriteString(fmt.Sprintf("- %s\n", p))
	}

	rubric := strings.TrimSpace(string(in.Rubric))
	if rubric == "" || rubric == "null" {
		rubric = "{}"
	}
	b.WriteString(fmt.Sprintf("\nRubric:\n%s\n", rubric))
	b.WriteString(fmt.Sprintf("\nLearner answer:\n%s\n", in.Answer))
	b.WriteString(fmt.Sprintf("\nPrevious attempts on this challenge: %d\n", in.PriorAttempts))

	b.WriteString(`
Instructions:
1. Score each rubric dimension from 0 to 5 with a one-line comment.
2. Give an overall score from 0.0 to 1.0.
3. Decide whether the learner passes this unit.
4. Summarize strengths and weaknesses in 2-3 sentences.
5. Give 1-2 Socratic suggestions for improving the answer.
6. If the answer shows a missing prerequisite rather than a slip, name that prerequisite topic in a few words as remediation_topic. Otherwise leave it empty.`)

	return b.String()
}

const remedialSystemPrompt = `You are an expert curriculum designer who specializes in adaptive learning. A learner is struggling with a unit of their learning path and needs one small, foundational prerequisite unit.`

func buildRemedialUserMessage(in RemedialInput) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Learner's goal: %s\n", orNA(in.Goal)))
	b.WriteString(fmt.Sprintf("Unit they are struggling with: %q\n", in.NodeTitle))
	b.WriteString(fmt.Sprintf("Tutor's suggested remedial topic: %q\n", in.Suggestion))

	b.WriteString(`
Instructions:
1. Create ONE small prerequisite unit focused on the suggested topic.
2. Use an encouraging, clear title and description.
3. Keep it short: 10-20 minutes.
4. Use node_type "concept" unless hands-on practice is clearly needed.`)

	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
