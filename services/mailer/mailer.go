package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"snsworker/internal/applicant"
	"snsworker/logger"
)

// Message is one rendered email ready for dispatch.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Dispatcher hands rendered messages to the actual sending machinery.
type Dispatcher interface {
	// Send dispatches one message. Failures are reported per message and
	// never abort the rest of a batch.
	Send(ctx context.Context, msg Message) error

	// Close releases dispatcher resources
	Close() error
}

// StreamTrimmer is implemented by dispatchers that buffer messages on
// bounded queues. Callers trim after each dispatch batch so the outbox
// cannot grow without limit when the sending process lags.
type StreamTrimmer interface {
	TrimStreams(ctx context.Context) error
}

// BatchResult aggregates one dispatch batch so a UI can render
// "N succeeded, M failed" without crashing on partial failure.
type BatchResult struct {
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Failures map[string]string `json:"failures,omitempty"`
}

var selectedTmpl = template.Must(template.New("selected").Parse(`<html><body>
<p>{{.Name}}님, 안녕하세요.</p>
<p><strong>{{.Project}}</strong> 캠페인에 선정되셨습니다. 축하드립니다!</p>
<p>자세한 진행 안내는 곧 별도 메일로 보내드리겠습니다.</p>
</body></html>`))

var notSelectedTmpl = template.Must(template.New("not_selected").Parse(`<html><body>
<p>{{.Name}}님, 안녕하세요.</p>
<p><strong>{{.Project}}</strong> 캠페인에 지원해 주셔서 감사합니다.</p>
<p>아쉽게도 이번 캠페인에서는 모시지 못하게 되었습니다. 다음 기회에 다시 만나 뵙기를 바랍니다.</p>
</body></html>`))

// RenderDecision builds the accept or reject message for a scored
// applicant. The applicant must already carry a final status.
func RenderDecision(project string, a applicant.Applicant) (Message, error) {
	data := struct {
		Name    string
		Project string
	}{Name: a.Name, Project: project}

	var (
		tmpl    *template.Template
		subject string
	)
	switch a.Status {
	case applicant.StatusSelected:
		tmpl = selectedTmpl
		subject = fmt.Sprintf("[%s] 캠페인 선정 안내", project)
	case applicant.StatusNotSelected:
		tmpl = notSelectedTmpl
		subject = fmt.Sprintf("[%s] 캠페인 결과 안내", project)
	default:
		return Message{}, fmt.Errorf("applicant %s has no final status", a.Key())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render decision mail: %w", err)
	}

	return Message{To: a.Email, Subject: subject, HTML: buf.String()}, nil
}

// SendDecisions renders and dispatches a decision mail per applicant.
// Applicants without an email address are skipped silently. Send failures
// are logged and aggregated, never retried here.
func SendDecisions(ctx context.Context, d Dispatcher, project string, applicants []applicant.Applicant) BatchResult {
	result := BatchResult{Failures: make(map[string]string)}
	log := logger.ForMailer()

	for _, a := range applicants {
		if a.Email == "" {
			continue
		}

		msg, err := RenderDecision(project, a)
		if err != nil {
			result.Failed++
			result.Failures[a.Email] = err.Error()
			log.Error().Err(err).Str("to", a.Email).Msg("Failed to render decision mail")
			continue
		}

		if err := d.Send(ctx, msg); err != nil {
			result.Failed++
			result.Failures[a.Email] = err.Error()
			log.Error().Err(err).Str("to", a.Email).Msg("Failed to dispatch decision mail")
			continue
		}
		result.Sent++
	}

	return result
}
