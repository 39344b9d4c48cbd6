package streaming

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// DataStreamHeader marks a response as an AI SDK data stream
const DataStreamHeader = "X-Vercel-AI-Data-Stream"

// Part type codes
const (
	partText         = "0"
	partError        = "3"
	partStartMessage = "f"
	partFinishStep   = "e"
	partFinish       = "d"
)

type startMessage struct {
	MessageID string `json:"messageId"`
}

type finishStep struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
	IsContinued  bool   `json:"isContinued"`
}

type finishMessage struct {
	FinishReason string `json:"finishReason"`
	Usage        Usage  `json:"usage"`
}

// dataEncoder writes the AI SDK data stream protocol
type dataEncoder struct {
	writer
	messageID string
}

func (e *dataEncoder) Text(delta string) error {
	if delta == "" {
		return nil
	}
	if err := e.open(); err != nil {
		return err
	}
	return e.part(partText, delta)
}

func (e *dataEncoder) Finish(reason string, usage *Usage) error {
	if err := e.open(); err != nil {
		return err
	}
	var u Usage
	if usage != nil {
		u = *usage
	}
	if err := e.part(partFinishStep, finishStep{FinishReason: reason, Usage: u}); err != nil {
		return err
	}
	return e.part(partFinish, finishMessage{FinishReason: reason, Usage: u})
}

func (e *dataEncoder) Error(message string) error {
	if err := e.open(); err != nil {
		return err
	}
	return e.part(partError, message)
}

// open sends the headers and the start part before the first content part
func (e *dataEncoder) open() error {
	if e.started {
		return nil
	}
	e.start(func(h http.Header) {
		h.Set(DataStreamHeader, "v1")
	})
	return e.part(partStartMessage, startMessage{MessageID: e.messageID})
}

func (e *dataEncoder) part(code string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode stream part %s: %w", code, err)
	}
	line := make([]byte, 0, len(code)+len(payload)+2)
	line = append(line, code...)
	line = append(line, ':')
	line = append(line, payload...)
	line = append(line, '\n')
	return e.write(line)
}
