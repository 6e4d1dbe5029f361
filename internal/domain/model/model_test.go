package model_test

import (
	"testing"
	"time"

	"github.com/okian/tailor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEventType(t *testing.T) {
	Convey("Given the known event types", t, func() {
		Convey("Then every listed type is valid", func() {
			for _, et := range model.EventTypes {
				So(et.Valid(), ShouldBeTrue)
			}
		})

		Convey("And unknown types are rejected", func() {
			So(model.EventType("page_view").Valid(), ShouldBeFalse)
			So(model.EventType("").Valid(), ShouldBeFalse)
		})
	})
}

func TestParseGender(t *testing.T) {
	Convey("Given free-text gender values", t, func() {
		So(model.ParseGender(" Female "), ShouldEqual, model.GenderFemale)
		So(model.ParseGender("men"), ShouldEqual, model.GenderMale)
		So(model.ParseGender("other"), ShouldEqual, model.GenderUnknown)
		So(model.ParseGender(""), ShouldEqual, model.GenderUnknown)
	})
}

func TestCandidateAgeDays(t *testing.T) {
	Convey("Given a candidate", t, func() {
		now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

		Convey("When it was created ten days ago", func() {
			c := model.Candidate{CreatedAt: now.Add(-240 * time.Hour)}
			So(c.AgeDays(now), ShouldAlmostEqual, 10.0, 1e-9)
		})

		Convey("When the creation date is in the future", func() {
			c := model.Candidate{CreatedAt: now.Add(time.Hour)}
			So(c.AgeDays(now), ShouldEqual, 0)
		})

		Convey("When the creation date is unknown", func() {
			c := model.Candidate{}
			So(c.AgeDays(now), ShouldEqual, 365)
		})
	})
}
