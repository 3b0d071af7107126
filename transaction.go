package modbus

import (
	"context"
	"errors"
	"time"
)

// frameTransport is the wire specific half of a transaction.
type frameTransport interface {
	// writeMessage frames and sends m.
	writeMessage(m Message) error
	// readResponse reads and decodes one response frame to req.
	readResponse(req Request) (Message, error)
	// onValidateResponse correlates rsp with req once function code and
	// slave address matched. false means rsp is stale and the read repeats.
	onValidateResponse(req Request, rsp Message) (bool, error)
}

// transaction drives unicast request/response exchanges with retries.
//
// Transient failures (read errors, timeouts, malformed or mismatched
// responses) resend the request until retries are used up. Acknowledge makes
// the master wait and read again. Slave device busy makes it wait and resend
// without spending a retry. Any other exception ends the transaction.
type transaction struct {
	transport               frameTransport
	retries                 int
	waitToRetry             time.Duration
	slaveBusyUsesRetryCount bool
	*clogs
}

func newTransaction(transport frameTransport, o *options, l *clogs) *transaction {
	return &transaction{
		transport:               transport,
		retries:                 o.retries,
		waitToRetry:             o.waitToRetry,
		slaveBusyUsesRetryCount: o.slaveBusyUsesRetryCount,
		clogs:                   l,
	}
}

// unicast sends req and returns its validated response.
func (sf *transaction) unicast(ctx context.Context, req Request) (Message, error) {
	for attempt := 1; ; {
		rsp, err := sf.exchange(ctx, req)
		if err == nil {
			return rsp, nil
		}
		if e := ctx.Err(); e != nil {
			return nil, e
		}

		var exception *ExceptionError
		if errors.As(err, &exception) {
			if exception.ExceptionCode != ExceptionCodeServerDeviceBusy {
				return nil, err
			}
			if !sf.slaveBusyUsesRetryCount {
				sf.Debugf("slave '%v' busy, resend after %v", req.SlaveAddress(), sf.waitToRetry)
				if err = sleep(ctx, sf.waitToRetry); err != nil {
					return nil, err
				}
				continue
			}
		}

		if attempt > sf.retries {
			sf.Errorf("slave '%v' function '%v' failed after %d attempts, %v",
				req.SlaveAddress(), req.FunctionCode(), attempt, err)
			return nil, err
		}
		sf.Debugf("slave '%v' function '%v' attempt %d of %d failed, %v",
			req.SlaveAddress(), req.FunctionCode(), attempt, sf.retries+1, err)
		attempt++
		if err = sleep(ctx, sf.waitToRetry); err != nil {
			return nil, err
		}
	}
}

// exchange writes req once and reads until a response is accepted or fails.
func (sf *transaction) exchange(ctx context.Context, req Request) (Message, error) {
	if err := sf.transport.writeMessage(req); err != nil {
		return nil, err
	}
	for {
		rsp, err := sf.transport.readResponse(req)
		if err != nil {
			return nil, err
		}

		if exception, ok := rsp.(ExceptionResponse); ok {
			if exception.ExceptionCode() != ExceptionCodeAcknowledge {
				return nil, exception.Err()
			}
			sf.Debugf("slave '%v' acknowledged, read again after %v", req.SlaveAddress(), sf.waitToRetry)
			if err = sleep(ctx, sf.waitToRetry); err != nil {
				return nil, err
			}
			continue
		}

		if rsp.FunctionCode() != req.FunctionCode() {
			return nil, mismatch("response function '%v' does not match request '%v'",
				rsp.FunctionCode(), req.FunctionCode())
		}
		if rsp.SlaveAddress() != req.SlaveAddress() {
			return nil, mismatch("response slave '%v' does not match request '%v'",
				rsp.SlaveAddress(), req.SlaveAddress())
		}

		ok, err := sf.transport.onValidateResponse(req, rsp)
		if err != nil {
			return nil, err
		}
		if !ok {
			if err = sleep(ctx, sf.waitToRetry); err != nil {
				return nil, err
			}
			continue
		}
		return rsp, nil
	}
}

// broadcast writes req to every slave, nobody answers.
func (sf *transaction) broadcast(req Request) error {
	return sf.transport.writeMessage(req)
}

// sleep waits d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
