package telegram

import (
	"strings"

	"veritas/pkg/veritas"

	"github.com/gotd/td/tgerr"
)

// mapTelegramOutboundError classifies a gotd RPC failure into a neutral
// outbound error for retry decisions.
func mapTelegramOutboundError(err error) error {
	if err == nil {
		return nil
	}

	outboundErr := &veritas.OutboundError{
		Class: veritas.OutboundErrorUnknown,
		Err:   err,
	}

	if retryAfter, ok := tgerr.AsFloodWait(err); ok {
		outboundErr.Class = veritas.OutboundErrorRateLimited
		outboundErr.RetryAfter = retryAfter

		return outboundErr
	}

	rpcErr, ok := tgerr.As(err)
	if !ok {
		return outboundErr
	}

	outboundErr.Class = classifyTelegramRPCError(rpcErr)

	return outboundErr
}

func classifyTelegramRPCError(rpcErr *tgerr.Error) veritas.OutboundErrorClass {
	if rpcErr == nil {
		return veritas.OutboundErrorUnknown
	}

	errorType := strings.ToUpper(strings.TrimSpace(rpcErr.Type))
	if strings.Contains(errorType, "MESSAGE_NOT_MODIFIED") {
		return veritas.OutboundErrorNotModified
	}
	if rpcErr.Code == 420 || rpcErr.Code == 429 || strings.Contains(errorType, "FLOOD") {
		return veritas.OutboundErrorRateLimited
	}

	switch {
	case rpcErr.Code == 303:
		return veritas.OutboundErrorUnavailable
	case rpcErr.Code >= 400 && rpcErr.Code < 500:
		return veritas.OutboundErrorBadRequest
	case rpcErr.Code >= 500:
		return veritas.OutboundErrorUnavailable
	}

	return veritas.OutboundErrorUnknown
}
