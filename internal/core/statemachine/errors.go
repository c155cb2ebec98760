package statemachine

import "errors"

// ErrJoinerIDNotObserved reports that a decided proposal added an endpoint
// this node never recorded a joiner id for via a filtered UP alert.
// applyViewChange logs it at Error level and skips that endpoint; it does
// not abort the view change, and no round-trip asks the proposer for the id.
var ErrJoinerIDNotObserved = errors.New("statemachine: decided proposal adds endpoint with no recorded joiner id")

// ErrClosed is returned by HandleRequest once the actor has shut down.
var ErrClosed = errors.New("statemachine: actor is shut down")
