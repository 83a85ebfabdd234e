// Package shellexec runs approved shell commands on behalf of a session,
// grounded on the original implementation's shell execution module and
// adapted to mvdan.cc/sh/v3's interpreter the way the teacher's memsh
// package drives it — here pointed at the real OS filesystem and
// environment rather than an in-memory one, since OrbitDock executes
// commands a human has actually approved.
package shellexec

import (
	"bytes"
	"context"
	"time"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Result is the outcome of running one command.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	TimedOut   bool
}

// Execute parses and runs command as a shell script in cwd, bounded by
// timeout. It never returns an error for a non-zero exit; Result.ExitCode
// carries that. The returned error is reserved for parse failures or
// interpreter setup problems.
func Execute(ctx context.Context, command, cwd string, timeout time.Duration) (Result, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(bytes.NewReader([]byte(command)), "")
	if err != nil {
		return Result{}, err
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.StdIO(nil, &stdout, &stderr),
		interp.Dir(cwd),
	)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	runErr := runner.Run(runCtx, prog)
	elapsed := time.Since(start)

	result := Result{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: elapsed.Milliseconds(),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if status, ok := runErr.(interp.ExitStatus); ok {
		result.ExitCode = int(status)
		return result, nil
	}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}
