package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/repdao/internal/domain/model"
	kafkago "github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestSink(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a kafka sink over a fake writer", t, func() {
		w := &fakeWriter{}
		s, err := New(nil, WithWriter(w), WithTopic("reputation"))
		So(err, ShouldBeNil)
		So(s.Name(), ShouldEqual, "kafka")

		Convey("When a badge change is delivered", func() {
			err := s.Deliver(context.Background(), model.Change{
				Kind:     model.ChangeBadgeClaimed,
				Profiles: []*model.ReputationProfile{{Owner: "alice", Version: 2}},
				At:       at,
			})

			Convey("Then one message keyed by owner is written", func() {
				So(err, ShouldBeNil)
				So(w.msgs, ShouldHaveLength, 1)
				m := w.msgs[0]
				So(m.Topic, ShouldEqual, "reputation")
				So(string(m.Key), ShouldEqual, "alice")
				So(m.Time.Equal(at), ShouldBeTrue)
				So(m.Headers[0].Key, ShouldEqual, "kind")
				So(string(m.Headers[0].Value), ShouldEqual, "badge_claimed")

				var decoded model.Change
				So(json.Unmarshal(m.Value, &decoded), ShouldBeNil)
				So(decoded.Kind, ShouldEqual, model.ChangeBadgeClaimed)
				So(decoded.Profiles[0].Version, ShouldEqual, 2)
			})
		})

		Convey("When a realm change is delivered", func() {
			err := s.Deliver(context.Background(), model.Change{
				Kind:  model.ChangeRealmCreated,
				Realm: &model.GovernanceRealm{Name: "r1"},
				At:    at,
			})

			Convey("Then the realm names the key", func() {
				So(err, ShouldBeNil)
				So(string(w.msgs[0].Key), ShouldEqual, "realm:r1")
			})
		})

		Convey("When the broker is unavailable", func() {
			w.err = errors.New("leader not available")
			err := s.Deliver(context.Background(), model.Change{Kind: model.ChangeVoteCast, At: at})

			Convey("Then a publish error is returned", func() {
				So(errors.Is(err, ErrPublish), ShouldBeTrue)
			})
		})

		Convey("When closed", func() {
			So(s.Close(), ShouldBeNil)
			So(w.closed, ShouldBeTrue)
		})
	})

	Convey("Given no brokers and no writer", t, func() {
		_, err := New(nil)

		Convey("Then construction fails", func() {
			So(errors.Is(err, ErrNoBrokers), ShouldBeTrue)
		})
	})

	Convey("Given brokers", t, func() {
		s, err := New([]string{"localhost:9092"})

		Convey("Then the default topic is used", func() {
			So(err, ShouldBeNil)
			So(s.topic, ShouldEqual, DefaultTopic)
		})
	})
}
