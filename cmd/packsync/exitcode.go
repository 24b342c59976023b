package main

// exitCodeError lets ops modes pick the process exit code: 3 for a cache
// that fails verification, 4 for a manifest transport failure. Quiet
// suppresses the generic error print when the report already told the
// operator everything.
type exitCodeError struct {
	code  int
	msg   string
	quiet bool
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func (e *exitCodeError) Quiet() bool {
	return e.quiet
}
