package reports

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/mmdatafocus/ledger_backend/models/reports")
