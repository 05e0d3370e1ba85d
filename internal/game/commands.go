package game

import "time"

// command is the closed set of requests the loop accepts.
type command interface {
	apply(e *engine, now time.Time)
}

type placeReply struct {
	res PlaceResult
	err error
}

type placeCmd struct {
	req   PlaceRequest
	reply chan<- placeReply
}

func (c placeCmd) apply(e *engine, now time.Time) {
	res, err := e.place(c.req, now)
	c.reply <- placeReply{res: res, err: err}
}

type cancelReply struct {
	wager Wager
	err   error
}

type cancelCmd struct {
	ownerID string
	wagerID string
	reply   chan<- cancelReply
}

func (c cancelCmd) apply(e *engine, now time.Time) {
	w, err := e.cancel(c.ownerID, c.wagerID, now)
	c.reply <- cancelReply{wager: w, err: err}
}

type cancelOwnerCmd struct {
	ownerID string
	reply   chan<- []Wager
}

func (c cancelOwnerCmd) apply(e *engine, now time.Time) {
	c.reply <- e.cancelOwner(c.ownerID, now)
}

type cashoutReply struct {
	res CashoutResult
	err error
}

type cashoutCmd struct {
	ownerID string
	wagerID string
	reply   chan<- cashoutReply
}

func (c cashoutCmd) apply(e *engine, now time.Time) {
	res, err := e.cashOut(c.ownerID, c.wagerID, now)
	c.reply <- cashoutReply{res: res, err: err}
}

type intentCmd struct {
	req   IntentRequest
	reply chan<- error
}

func (c intentCmd) apply(e *engine, _ time.Time) {
	c.reply <- e.recordIntent(c.req)
}

type syncCmd struct {
	reply chan<- Snapshot
}

func (c syncCmd) apply(e *engine, now time.Time) {
	c.reply <- e.snapshot(now)
}
