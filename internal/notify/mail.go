package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"secretsweep/internal/logger"
	"secretsweep/internal/report"
)

const (
	topN        = 5
	mailTimeFmt = "2006-01-02 15:04:05"
	rule        = "============================================================"
)

// SESAPI is the part of the SES v2 client the mailer uses.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type Mailer struct {
	client    SESAPI
	sender    string
	recipient string
	log       *zap.SugaredLogger
}

func NewMailer(client SESAPI, sender, recipient string, log *zap.SugaredLogger) *Mailer {
	return &Mailer{client: client, sender: sender, recipient: recipient, log: logger.OrDefault(log)}
}

// Send delivers a plain-text mail.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	defer logger.Trace("Mailer.Send", start)

	out, err := m.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.sender),
		Destination:      &types.Destination{ToAddresses: []string{m.recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.log.Infof("Email sent successfully! MessageId: %s", aws.ToString(out.MessageId))
	return nil
}

// Message is a rendered mail.
type Message struct {
	Subject string
	Body    string
}

// ReportMessage renders the end-of-run report.
func ReportMessage(s report.Summary) Message {
	st := s.Stats
	subject := "GitHub Security Scan - No Secrets Found"
	if st.Matched > 0 {
		subject = fmt.Sprintf("GitHub Security Scan - %d Secrets Found!", st.Matched)
	}

	var b strings.Builder
	b.WriteString("GitHub Security Scanner Report\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("Scan Summary:\n-------------\n")
	fmt.Fprintf(&b, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(&b, "Total repositories found: %d\n", st.TotalCandidates)
	fmt.Fprintf(&b, "Unique repositories scanned: %d\n", st.UniqueRepos)
	fmt.Fprintf(&b, "NEW repositories: %d\n", st.NewRepos)
	fmt.Fprintf(&b, "Repositories with secrets found: %d\n", st.Matched)
	fmt.Fprintf(&b, "Total secrets detected: %d\n", len(s.Findings))
	fmt.Fprintf(&b, "Scan duration: %.1f seconds\n", st.Duration.Seconds())

	var perf []string
	if st.StaleSkipped > 0 {
		perf = append(perf,
			fmt.Sprintf("  Old repositories skipped (before %d): %d", s.MinYear, st.StaleSkipped),
			fmt.Sprintf("  Time saved by year filter: ~%d seconds", st.StaleSkipped*report.SecondsPerSkippedRepo),
		)
	}
	if st.DuplicatesSkipped > 0 {
		perf = append(perf,
			fmt.Sprintf("  Duplicate repositories skipped: %d", st.DuplicatesSkipped),
			fmt.Sprintf("  Time saved by caching: ~%d seconds", st.DuplicatesSkipped*report.SecondsPerSkippedRepo),
		)
	}
	if len(perf) > 0 {
		b.WriteString("\nPerformance Optimization:\n" + strings.Join(perf, "\n") + "\n")
	}

	if len(s.Files) > 0 {
		fmt.Fprintf(&b, "\nResults Files (Formats: %s):\n", strings.ToUpper(strings.Join(s.Formats, ", ")))
		for _, f := range s.Files {
			b.WriteString("- " + f + "\n")
		}
	}

	if top := report.Top(report.CountByDetector(s.Findings), topN); len(top) > 0 {
		b.WriteString("\nTop Detector Types:\n")
		for _, t := range top {
			fmt.Fprintf(&b, "  - %s: %d findings\n", t.Name, t.Count)
		}
	}
	if top := report.Top(report.CountByKeyword(s.Findings), topN); len(top) > 0 {
		b.WriteString("\nTop Keywords with Findings:\n")
		for _, t := range top {
			fmt.Fprintf(&b, "  - %s: %d secrets found\n", t.Name, t.Count)
		}
	}

	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "Scan completed at: %s\n\n", s.FinishedAt.Format(mailTimeFmt))
	b.WriteString("Please review the results files and take appropriate action for any secrets found.\n")
	b.WriteString("Ensure all exposed credentials are rotated immediately!\n\n")
	b.WriteString("This is an automated report from GitHub Security Scanner.\n")

	return Message{Subject: subject, Body: b.String()}
}

// InterruptMessage tells the recipient the run was stopped early.
func InterruptMessage(at time.Time, scanned, secrets int) Message {
	body := fmt.Sprintf(`GitHub Security Scanner was interrupted by user.

Scan details:
- Interrupted at: %s
- Repositories scanned before interruption: %d
- Secrets found before interruption: %d

This is an automated notification from GitHub Security Scanner.
`, at.Format(mailTimeFmt), scanned, secrets)
	return Message{Subject: "GitHub Security Scan - Interrupted", Body: body}
}

// ErrorMessage reports a run-terminating error.
func ErrorMessage(cause error, at time.Time, scanned, secrets int) Message {
	body := fmt.Sprintf(`A critical error occurred during the GitHub security scan.

Error details:
Critical error: %v

Scan details:
- Error occurred at: %s
- Repositories scanned: %d
- Secrets found: %d

Please check the scanner logs for more details.

This is an automated error notification from GitHub Security Scanner.
`, cause, at.Format(mailTimeFmt), scanned, secrets)
	return Message{Subject: "GitHub Security Scan - Critical Error", Body: body}
}
