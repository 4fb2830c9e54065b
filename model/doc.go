// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (OpenAI, Anthropic) implement the Model interface in the
// sub-packages so the oracle layer stays decoupled from vendor SDKs.
package model
