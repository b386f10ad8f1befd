package tests

import (
	"testing"

	"go.uber.org/zap"

	"github.com/vexlab/vexchange/params"
	"github.com/vexlab/vexchange/pkg/causal"
	"github.com/vexlab/vexchange/pkg/engine"
	"github.com/vexlab/vexchange/pkg/util"
)

// participant models one client with its own causal clock, receiving
// broadcast stamps in arbitrary order.
type participant struct {
	node *causal.Node
}

func newParticipant(id string) *participant {
	return &participant{node: causal.NewNode(id)}
}

func newEngine() *engine.Engine {
	return engine.New(params.Default().Engine, causal.NewNode("engine"), util.RealClock{}, zap.NewNop().Sugar())
}

// Full flow: place, cross, trade, cancel — with every hop stamped and the
// trade causally ordered after the placement that enabled it.
func TestTradeFlowCausality(t *testing.T) {
	eng := newEngine()
	alice := newParticipant("alice")
	bob := newParticipant("bob")

	placeStamp := alice.node.Tick()
	resA, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "alice", Symbol: "AAPL", Side: engine.Buy,
		Price: 15000, Qty: 100, Sender: placeStamp,
	})
	if err != nil {
		t.Fatal(err)
	}

	// alice's placement must be visible inside the engine's stamp.
	if causal.Compare(placeStamp.Vector, resA.Order.Stamp.Vector) != causal.Before {
		t.Error("engine stamp does not causally follow the placement")
	}

	resB, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "bob", Symbol: "AAPL", Side: engine.Sell,
		Price: 14900, Qty: 40, Sender: bob.node.Tick(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resB.Trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(resB.Trades))
	}

	trade := resB.Trades[0]
	if trade.Price != 15000 {
		t.Errorf("trade price = %d, want resting bid price 15000", trade.Price)
	}
	// The trade is causally after BOTH placements: it could not have
	// happened without either.
	if causal.Compare(placeStamp.Vector, trade.Stamp.Vector) != causal.Before {
		t.Error("trade does not causally follow alice's placement")
	}
	if causal.Compare(resA.Order.Stamp.Vector, trade.Stamp.Vector) != causal.Before {
		t.Error("trade does not causally follow the resting order")
	}

	if _, err := eng.CancelOrder(resA.Order.ID, "alice", alice.node.Tick()); err != nil {
		t.Fatalf("cancel remaining bid: %v", err)
	}
	snap, err := eng.TopOfBook("AAPL", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Bids) != 0 {
		t.Errorf("bids after cancel = %+v, want empty", snap.Bids)
	}
}

// Two participants acting on unrelated symbols share an engine but no
// causal history: their own stamps must compare CONCURRENT.
func TestIndependentParticipantsStayConcurrent(t *testing.T) {
	eng := newEngine()
	alice := newParticipant("alice")
	bob := newParticipant("bob")

	stampA := alice.node.Tick()
	if _, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "alice", Symbol: "AAPL", Side: engine.Buy,
		Price: 15000, Qty: 10, Sender: stampA,
	}); err != nil {
		t.Fatal(err)
	}

	stampB := bob.node.Tick()
	if _, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "bob", Symbol: "MSFT", Side: engine.Sell,
		Price: 28000, Qty: 10, Sender: stampB,
	}); err != nil {
		t.Fatal(err)
	}

	if got := causal.Compare(stampA.Vector, stampB.Vector); got != causal.Concurrent {
		t.Errorf("Compare(alice, bob) = %v, want CONCURRENT", got)
	}
}

// Receivers seeing the same broadcasts in different orders must converge on
// the same merged clock, because merge is commutative.
func TestReceiversConvergeRegardlessOfDeliveryOrder(t *testing.T) {
	eng := newEngine()
	alice := newParticipant("alice")
	bob := newParticipant("bob")

	res1, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "alice", Symbol: "AAPL", Side: engine.Buy,
		Price: 15000, Qty: 10, Sender: alice.node.Tick(),
	})
	if err != nil {
		t.Fatal(err)
	}
	res2, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "bob", Symbol: "MSFT", Side: engine.Sell,
		Price: 28000, Qty: 10, Sender: bob.node.Tick(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// carol gets res1 then res2, dave the reverse.
	carol := newParticipant("carol")
	dave := newParticipant("dave")
	carol.node.Observe(res1.Order.Stamp)
	carol.node.Observe(res2.Order.Stamp)
	dave.node.Observe(res2.Order.Stamp)
	dave.node.Observe(res1.Order.Stamp)

	cv := carol.node.Current().Vector
	dv := dave.node.Current().Vector
	for _, id := range []string{"alice", "bob", "engine"} {
		if cv[id] != dv[id] {
			t.Errorf("entry %q diverged: carol %d, dave %d", id, cv[id], dv[id])
		}
	}

	// A receiver can tell which engine event subsumes the other.
	if causal.Compare(res1.Order.Stamp.Vector, res2.Order.Stamp.Vector) != causal.Before {
		t.Error("second engine event should subsume the first (same coordinator)")
	}
}

// Stale updates are detectable: an event whose vector is BEFORE what the
// receiver already merged carries no new information.
func TestStaleUpdateDetection(t *testing.T) {
	eng := newEngine()
	alice := newParticipant("alice")

	res1, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "alice", Symbol: "AAPL", Side: engine.Buy,
		Price: 15000, Qty: 10, Sender: alice.node.Tick(),
	})
	if err != nil {
		t.Fatal(err)
	}
	res2, err := eng.SubmitOrder(engine.SubmitRequest{
		ParticipantID: "alice", Symbol: "AAPL", Side: engine.Buy,
		Price: 14900, Qty: 10, Sender: alice.node.Tick(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Receiver got the newer update first.
	carol := newParticipant("carol")
	carol.node.Observe(res2.Order.Stamp)

	// The older one arrives late: its vector is BEFORE the local clock, so
	// the receiver knows it is causally subsumed.
	local := carol.node.Current()
	if got := causal.Compare(res1.Order.Stamp.Vector, local.Vector); got != causal.Before {
		t.Errorf("late update vs local clock = %v, want BEFORE", got)
	}
}
