package logger

import "go.uber.org/zap"

// Field constructors for the identifiers that show up in almost every
// tracking and settlement log line.

func Shipment(ref string) zap.Field { return zap.String("shipment_ref", ref) }

func Invoice(number string) zap.Field { return zap.String("invoice_number", number) }

func Attempt(id string) zap.Field { return zap.String("attempt_id", id) }

func Stage(stage string) zap.Field { return zap.String("stage", stage) }
