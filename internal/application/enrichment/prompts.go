package enrichment

import (
	"fmt"
	"strings"

	"github.com/mytegroup/billtracker/internal/domain/entities"
)

// promptContentLimit caps how much bill text is embedded in a prompt.
const promptContentLimit = 1000

const summarySystemPrompt = "You are a legal assistant generating HTML summaries for Canadian bills."

const summaryAssistantPrompt = "Please create a structured HTML summary with headers, paragraphs, bold text, and proper links. " +
	"You must respond only with the HTML structure - do not use descriptions before or after the HTML snippet. " +
	"Do not use triple backticks (```) in your response either."

const analystSystemPrompt = "You are a non-partisan policy analyst who studies Canadian federal legislation. " +
	"Base every statement on the bill details provided and say \"None\" when the text gives no basis for an answer."

const labeledAnswerPrompt = "Answer using exactly the labelled lines requested, one label per line, in the form `Label: value`. " +
	"Separate multiple values for a label with commas. Do not add any other text."

const listAnswerPrompt = "Answer with one item per line and no numbering or commentary. Answer `None` if there are no items."

const (
	namedEntitiesTask = "Identify the named entities mentioned in this bill.\n" +
		"People: <names of people>\n" +
		"Organizations: <government bodies, agencies, companies and associations>\n" +
		"Locations: <provinces, cities, regions and countries>"

	committeesTask = "List the parliamentary committees (House of Commons or Senate) that have studied or are likely to study this bill."

	billImpactTask = "Assess the expected impact of this bill in one or two sentences per area.\n" +
		"Social: <impact on individuals and communities>\n" +
		"Economic: <impact on businesses, workers and public finances>\n" +
		"Legal: <changes to existing statutes, rights or obligations>"

	amendmentsTask = "List the amendments this bill makes to existing Acts, or notable amendments proposed during its study."

	relatedBillsTask = "List related Canadian bills (current or previous Parliaments) by bill number and short title."

	debatesTask = "Summarize the parliamentary debate around this bill.\n" +
		"Summary: <two or three sentences on how the debate has unfolded>\n" +
		"Key Arguments: <the main arguments raised for and against>"

	publicEngagementTask = "Describe how the public is likely to engage with this bill.\n" +
		"Sentiment: <positive, negative, mixed or neutral, with a short qualifier>\n" +
		"Key Concerns: <the main concerns raised by the public>"

	stakeholderTask = "Analyse the stakeholders of this bill.\n" +
		"Supporters: <groups likely to support it>\n" +
		"Opponents: <groups likely to oppose it>\n" +
		"Affected Groups: <groups directly affected by it>"

	futureProjectionsTask = "Project the likely outcomes of this bill.\n" +
		"Short Term: <expected effects within a year of passage>\n" +
		"Long Term: <expected effects over five years or more>"
)

// describeBill renders the bill fields every prompt embeds.
func describeBill(bill *entities.BillRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", bill.Title)
	fmt.Fprintf(&b, "Bill Number: %s\n", bill.BillNumber)
	fmt.Fprintf(&b, "Current Status: %s\n", bill.CurrentStatus)
	fmt.Fprintf(&b, "Last Major Stage Completed: %s\n", bill.LastMajorStageCompleted)
	fmt.Fprintf(&b, "Parliament Session: %s\n", bill.ParliamentSession)
	fmt.Fprintf(&b, "Senate Readings: First - %s, Second - %s, Third - %s\n",
		bill.SenateFirstReading, bill.SenateSecondReading, bill.SenateThirdReading)
	fmt.Fprintf(&b, "House Readings: First - %s, Second - %s, Third - %s\n",
		bill.HouseFirstReading, bill.HouseSecondReading, bill.HouseThirdReading)
	fmt.Fprintf(&b, "Royal Assent: %s\n", bill.RoyalAssent)
	fmt.Fprintf(&b, "Sponsor: %s\n", bill.Sponsor)
	fmt.Fprintf(&b, "Bill Type: %s\n", bill.BillType)
	fmt.Fprintf(&b, "Bill Content: %s\n", truncateContent(bill.BillContent, promptContentLimit))
	fmt.Fprintf(&b, "Contact Email: %s\n", bill.ContactEmail)
	return b.String()
}

func truncateContent(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "... (truncated)"
}

func buildSummaryPrompt(bill *entities.BillRecord) string {
	return "Summarize the following bill with structured HTML:\n" + describeBill(bill)
}

func taskPrompt(task string) func(*entities.BillRecord) string {
	return func(bill *entities.BillRecord) string {
		return task + "\n\nBill details:\n" + describeBill(bill)
	}
}
