package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
)

func expectTopic(topic string, state orchestration.State) mocks.MessageChecker {
	return func(m *sarama.ProducerMessage) error {
		if m.Topic != topic {
			return fmt.Errorf("topic = %q, want %q", m.Topic, topic)
		}
		raw, err := m.Value.Encode()
		if err != nil {
			return err
		}
		var got map[string]any
		if err := json.Unmarshal(raw, &got); err != nil {
			return err
		}
		if got["state"] != string(state) {
			return fmt.Errorf("state = %v, want %s", got["state"], state)
		}
		return nil
	}
}

func TestDriver_RoutesFailedRuns(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectTopic("runs", orchestration.Succeeded))
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectTopic("runs-failed", orchestration.Failed))

	d := &driver{cfg: Config{Topic: "runs", FailureTopic: "runs-failed"}, p: p}

	ok := orchestration.Run{ID: "r1", State: orchestration.Succeeded, Output: transform.Output{StatusCode: 200}}
	if err := d.Push(ok); err != nil {
		t.Fatalf("push succeeded run: %v", err)
	}
	bad := orchestration.Run{ID: "r2", State: orchestration.Failed, Cause: orchestration.ErrTimeout}
	if err := d.Push(bad); err != nil {
		t.Fatalf("push failed run: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestDriver_NoFailureTopic(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(expectTopic("runs", orchestration.Failed))

	d := &driver{cfg: Config{Topic: "runs"}, p: p}
	if err := d.Push(orchestration.Run{ID: "r3", State: orchestration.Failed, Cause: errors.New("boom")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	_ = d.Close()
}

func TestDriver_SendError(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	d := &driver{cfg: Config{Topic: "runs"}, p: p}
	err := d.Push(orchestration.Run{ID: "r4", State: orchestration.Succeeded})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("want ErrOutOfBrokers, got %v", err)
	}
	_ = d.Close()
}

func TestDriver_ConfigureValidates(t *testing.T) {
	d := &driver{}
	if err := d.Configure("nope"); err == nil {
		t.Fatal("expected type error")
	}
	if err := d.Configure(Config{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatal("expected missing topic error")
	}
}
