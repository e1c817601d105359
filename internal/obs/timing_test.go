package obs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Fatalf("RequestID() = %q, want abc", got)
	}

	generated := RequestID(WithRequestID(context.Background(), ""))
	if len(generated) != 36 {
		t.Fatalf("expected generated uuid, got %q", generated)
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty id on bare context")
	}
}

func TestTimeLogsError(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	ctx := WithRequestID(context.Background(), "r1")
	err := errors.New("boom")
	Time(ctx, "plan")(&err)
	var ok error
	Time(ctx, "plan.ok")(&ok)

	out := buf.String()
	if !strings.Contains(out, "req_id=r1 op=plan ") || !strings.Contains(out, "err=boom") {
		t.Fatalf("unexpected log output: %s", out)
	}
	if !strings.Contains(out, "op=plan.ok") {
		t.Fatalf("missing success line: %s", out)
	}
}
