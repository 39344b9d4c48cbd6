package streaming

// textEncoder writes bare text deltas
type textEncoder struct {
	writer
}

func (e *textEncoder) Text(delta string) error {
	if delta == "" {
		return nil
	}
	e.start(nil)
	return e.write([]byte(delta))
}

// Finish makes sure an empty answer still gets a 200 response
func (e *textEncoder) Finish(string, *Usage) error {
	if !e.started {
		e.start(nil)
		if e.flusher != nil {
			e.flusher.Flush()
		}
	}
	return nil
}

func (e *textEncoder) Error(string) error {
	return ErrInBandErrorUnsupported
}
