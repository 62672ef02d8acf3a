// Package pipeline runs inbound gateway events through an ordered chain of
// interceptor stages around the domain router.
//
// A stage is any value with a Name that implements one or more of BeforeStage,
// AfterStage, ErrorStage and Decorator. The composition root lists stages in order;
// the Chain owns the execution protocol:
//
//  1. Before hooks run in order. A hook may short-circuit by setting
//     Invocation.Response; later before hooks still run but the handler is skipped.
//     A before hook error enters the error path.
//  2. The event is normalized and handed to the terminal handler.
//  3. After hooks run in order. They may change headers only; status and body are
//     restored after every hook.
//  4. On any error every OnError hook runs in order. The first response produced
//     wins; without one the client receives a generic 500.
//  5. Decorators add headers to whichever response goes out, on both paths.
//
// Stages keep no per-request state. Everything request-scoped lives on the
// Invocation, which is never shared between requests.
package pipeline
