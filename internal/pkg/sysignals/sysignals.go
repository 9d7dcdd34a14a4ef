// Package sysignals converts OS termination signals into errors, so that the application can
// treat a quit signal like any other fatal error and shut down through the same path.
package sysignals

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/naughtygopher/errors"
)

var ErrSigQuit = errors.New("received terminal signal")

// NotifyErrorOnQuit blocks until one of SIGINT, SIGTERM, SIGQUIT or any of the extra signals
// is received, and then pushes ErrSigQuit (wrapped with the signal name) into errs.
func NotifyErrorOnQuit(errs chan<- error, extra ...os.Signal) {
	sigs := make(chan os.Signal, 1)
	watched := append([]os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}, extra...)
	signal.Notify(sigs, watched...)
	defer signal.Stop(sigs)

	waitForQuit(errs, sigs)
}

func waitForQuit(errs chan<- error, sigs <-chan os.Signal) {
	sig := <-sigs
	errs <- errors.Wrapf(ErrSigQuit, "%s", sig.String())
}
