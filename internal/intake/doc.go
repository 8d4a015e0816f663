// Package intake provides the business boundary for the conversational
// intake assistant. It defines the Service (chat turns, mutators, export),
// the Extractor/Decide/Composer pipeline stages, the summary Refresher, and
// the Orchestrator that runs the pipeline through a durable or local
// execution strategy.
package intake
