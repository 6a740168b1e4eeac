package errors

import (
	"errors"
	"fmt"
	"net"
)

type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	NetOp      string `json:"net_op,omitempty"`
	NetAddr    string `json:"net_addr,omitempty"`
	NetTimeout bool   `json:"net_timeout,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
	}

	if te := As(err); te != nil {
		d.Code = te.Code()
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		d.NetOp = opErr.Op
		if opErr.Addr != nil {
			d.NetAddr = opErr.Addr.String()
		}
		d.NetTimeout = opErr.Timeout()
		return d
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		d.NetTimeout = netErr.Timeout()
	}

	return d
}
