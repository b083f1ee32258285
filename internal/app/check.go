package app

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Check runs a single cycle against the live API and prints the outcome.
// Failures are returned, not reported to chat.
func (a *App) Check(ctx context.Context, out io.Writer) error {
	poller, err := a.newPoller(nil, nil, nil)
	if err != nil {
		return err
	}

	res := poller.Poll(ctx, time.Now().UTC(), false)

	fmt.Fprintf(out, "from_date: %d\noutcome: %s\n", poller.Cursor(), res.State)
	if res.Text != "" {
		fmt.Fprintf(out, "message: %s\n", res.Text)
	}
	if res.Failed() {
		fmt.Fprintf(out, "kind: %s\n", res.Kind)
		return fmt.Errorf("check failed: %s", res.Message)
	}
	return nil
}
