// Package history records the payloads sent on a signal and replays them.
//
// A Store is a bounded log of Records. Attach it to a signal and every send
// is recorded before dispatch, whether or not any receiver succeeds:
//
//	store := history.NewStore[Order](500)
//	store.Attach(sig)
//
// Replay re-sends recorded payloads in order, spacing them by their original
// inter-arrival gaps divided by a Speed:
//
//	res, err := history.Replay(ctx, store.Records(), sig, history.Fast)
//
// Sends made by Replay are marked on the context and are not recorded again.
//
// Records can be exported and restored with Encode, Decode and Store.Load,
// using JSONCodec or MsgpackCodec.
package history
