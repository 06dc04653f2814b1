/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/caarlos0/ctrlc"
	"github.com/okinaau/iloader/internal/colors"
	"github.com/okinaau/iloader/internal/operation"
	"github.com/okinaau/iloader/internal/utils"
)

func logEvent(ev operation.Event) {
	switch ev.Kind {
	case operation.KindStarted, operation.KindAdvanced:
		utils.Indent(log.Info, 1)(fmt.Sprintf("%s %s", ev.Operation, colors.Step(ev.Step)))
	case operation.KindFailed:
		utils.Indent(log.Error, 1)(fmt.Sprintf("%s %s: %s", ev.Operation, colors.Failure(ev.Step), ev.Message))
	case operation.KindCompleted:
		utils.Indent(log.Info, 1)(fmt.Sprintf("%s %s", ev.Operation, colors.Success("completed")))
	}
}

// runOperation runs fn, printing its events, until it returns or ctrl-c is hit.
func runOperation(ctx context.Context, fn func(ctx context.Context, events chan<- operation.Event) error) error {
	events := make(chan operation.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			logEvent(ev)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	err := ctrlc.Default.Run(ctx, func() error {
		defer close(events)
		return fn(ctx, events)
	})
	if errors.As(err, &ctrlc.ErrorCtrlC{}) {
		log.Warn("Exiting...")
		return nil
	}
	<-done
	return err
}
