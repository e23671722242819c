package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"secretsweep/internal/report"
	"secretsweep/models"
)

type mockSES struct{ mock.Mock }

func (m *mockSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*sesv2.SendEmailOutput)
	return out, args.Error(1)
}

type mockSQS struct{ mock.Mock }

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(in)
	out, _ := args.Get(0).(*sqs.SendMessageOutput)
	return out, args.Error(1)
}

func TestMailer_Send(t *testing.T) {
	ses := &mockSES{}
	ses.On("SendEmail", mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return aws.ToString(in.FromEmailAddress) == "scanner@example.com" &&
			in.Destination.ToAddresses[0] == "sec@example.com" &&
			aws.ToString(in.Content.Simple.Subject.Data) == "hello" &&
			aws.ToString(in.Content.Simple.Body.Text.Data) == "body"
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("m-1")}, nil).Once()

	m := NewMailer(ses, "scanner@example.com", "sec@example.com", zaptest.NewLogger(t).Sugar())
	require.NoError(t, m.Send(context.Background(), Message{Subject: "hello", Body: "body"}))
	ses.AssertExpectations(t)
}

func TestMailer_SendError(t *testing.T) {
	ses := &mockSES{}
	ses.On("SendEmail", mock.Anything).Return(nil, errors.New("MessageRejected"))

	m := NewMailer(ses, "a@example.com", "b@example.com", nil)
	assert.ErrorContains(t, m.Send(context.Background(), Message{}), "MessageRejected")
}

func TestReportMessage(t *testing.T) {
	findings := []models.Finding{
		{Keyword: "password", DetectorType: "AWS"},
		{Keyword: "password", DetectorType: "AWS"},
		{Keyword: "token", DetectorType: "Slack"},
	}
	s := report.Summary{
		RunID: "run-1",
		Stats: models.RunStatistics{
			TotalCandidates: 9, UniqueRepos: 7, Matched: 3,
			DuplicatesSkipped: 2, Duration: 90 * time.Second,
		},
		Findings:   findings,
		MinYear:    2024,
		Formats:    []string{"xlsx", "csv"},
		Files:      []string{"out.xlsx", "out_public_repos.xlsx"},
		FinishedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}

	msg := ReportMessage(s)
	assert.Equal(t, "GitHub Security Scan - 3 Secrets Found!", msg.Subject)
	assert.Contains(t, msg.Body, "Total repositories found: 9")
	assert.Contains(t, msg.Body, "Total secrets detected: 3")
	assert.Contains(t, msg.Body, "Time saved by caching: ~10 seconds")
	assert.NotContains(t, msg.Body, "year filter")
	assert.Contains(t, msg.Body, "Results Files (Formats: XLSX, CSV):")
	assert.Contains(t, msg.Body, "- out_public_repos.xlsx")
	assert.Contains(t, msg.Body, "  - AWS: 2 findings")
	assert.Contains(t, msg.Body, "  - password: 2 secrets found")
	assert.Contains(t, msg.Body, "Scan completed at: 2026-03-04 05:06:07")
	assert.Less(t, strings.Index(msg.Body, "AWS: 2"), strings.Index(msg.Body, "Slack: 1"))
}

func TestReportMessage_NoFindings(t *testing.T) {
	msg := ReportMessage(report.Summary{})
	assert.Equal(t, "GitHub Security Scan - No Secrets Found", msg.Subject)
	assert.NotContains(t, msg.Body, "Top Detector Types")
}

func TestInterruptAndErrorMessages(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	in := InterruptMessage(at, 4, 1)
	assert.Equal(t, "GitHub Security Scan - Interrupted", in.Subject)
	assert.Contains(t, in.Body, "Repositories scanned before interruption: 4")

	er := ErrorMessage(errors.New("disk full"), at, 4, 1)
	assert.Equal(t, "GitHub Security Scan - Critical Error", er.Subject)
	assert.Contains(t, er.Body, "Critical error: disk full")
	assert.Contains(t, er.Body, "Error occurred at: 2026-01-01 12:00:00")
}

func TestSQSPublisher_Publish(t *testing.T) {
	client := &mockSQS{}
	var sent *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*sqs.SendMessageInput)
	}).Return(&sqs.SendMessageOutput{MessageId: aws.String("id-1")}, nil).Once()

	p := NewSQSPublisher(client, "https://sqs.eu-central-1.amazonaws.com/1/q", zaptest.NewLogger(t).Sugar())
	ev := RunEvent{
		RunID:    "run-1",
		Status:   "completed",
		Mode:     "code",
		Keywords: []string{"password"},
		Stats:    models.RunStatistics{Matched: 2},
		Files:    []string{"out.xlsx"},
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.NotNil(t, sent)

	assert.Equal(t, "https://sqs.eu-central-1.amazonaws.com/1/q", aws.ToString(sent.QueueUrl))
	assert.Equal(t, eventType, aws.ToString(sent.MessageAttributes["event_type"].StringValue))

	var got RunEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sent.MessageBody)), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 2, got.Stats.Matched)
	assert.Equal(t, []string{"out.xlsx"}, got.Files)
}

func TestSQSPublisher_Error(t *testing.T) {
	client := &mockSQS{}
	client.On("SendMessage", mock.Anything).Return(nil, errors.New("AccessDenied"))

	err := NewSQSPublisher(client, "q", nil).Publish(context.Background(), RunEvent{RunID: "r"})
	assert.ErrorContains(t, err, "AccessDenied")
}
