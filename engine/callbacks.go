package engine

// Callbacks are the embedder hooks named in spec §6.2. Any nil field is
// treated as a no-op; the engine always checks before calling.
type Callbacks struct {
	OnReceiveFile       func(blob []byte, filename string)
	OnError             func(err error)
	OnProgress          func(progress TransferProgress)
	OnVerificationState func(event VerificationEvent)
}

func (c Callbacks) receiveFile(blob []byte, filename string) {
	if c.OnReceiveFile != nil {
		c.OnReceiveFile(blob, filename)
	}
}

func (c Callbacks) error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) progress(p TransferProgress) {
	if c.OnProgress != nil {
		c.OnProgress(p)
	}
}

func (c Callbacks) verificationState(e VerificationEvent) {
	if c.OnVerificationState != nil {
		c.OnVerificationState(e)
	}
}
