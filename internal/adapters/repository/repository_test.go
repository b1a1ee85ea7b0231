package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"

	"github.com/okian/fraudwatch/internal/adapters/repository"
	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) //nolint:gochecknoglobals // test fixture

func sampleRun(id string, age time.Duration) *model.Run {
	t := &model.Table{Columns: []string{"amount"}, Rows: [][]string{{"10"}, {"100"}}}
	return &model.Run{
		ID:        id,
		Filename:  id + ".csv",
		CreatedAt: epoch.Add(-age),
		Stage:     model.StageAlertsDispatched,
		Labeled:   model.Label(t, []int{0, 1}),
		Alerts:    model.AlertReport{Attempted: 1, Delivered: 1},
	}
}

func TestMemoryStore(t *testing.T) {
	convey.Convey("Given a memory store holding two runs", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore(repository.WithCapacity(2))
		convey.So(s.Save(ctx, sampleRun("old", time.Hour)), convey.ShouldBeNil)
		convey.So(s.Save(ctx, sampleRun("new", 0)), convey.ShouldBeNil)

		convey.Convey("Then runs are listed newest first", func() {
			list, err := s.List(ctx, 10)
			convey.So(err, convey.ShouldBeNil)
			convey.So(list, convey.ShouldHaveLength, 2)
			convey.So(list[0].ID, convey.ShouldEqual, "new")
			convey.So(list[0].RowCount, convey.ShouldEqual, 2)
			convey.So(list[0].FraudCount, convey.ShouldEqual, 1)
		})

		convey.Convey("Then a limit trims the list", func() {
			list, err := s.List(ctx, 1)
			convey.So(err, convey.ShouldBeNil)
			convey.So(list, convey.ShouldHaveLength, 1)
			_, err = s.List(ctx, 0)
			convey.So(errors.Is(err, repository.ErrInvalidLimit), convey.ShouldBeTrue)
		})

		convey.Convey("When a third run arrives", func() {
			convey.So(s.Save(ctx, sampleRun("newest", -time.Hour)), convey.ShouldBeNil)

			convey.Convey("Then the oldest is evicted", func() {
				convey.So(s.Count(ctx), convey.ShouldEqual, 2)
				_, err := s.Get(ctx, "old")
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
				r, err := s.Get(ctx, "newest")
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Filename, convey.ShouldEqual, "newest.csv")
			})
		})

		convey.Convey("When an existing run is saved again", func() {
			r := sampleRun("old", time.Hour)
			r.Stage = model.StageFailed
			convey.So(s.Save(ctx, r), convey.ShouldBeNil)

			convey.Convey("Then it is replaced, not duplicated", func() {
				convey.So(s.Count(ctx), convey.ShouldEqual, 2)
				got, err := s.Get(ctx, "old")
				convey.So(err, convey.ShouldBeNil)
				convey.So(got.Stage, convey.ShouldEqual, model.StageFailed)
			})
		})
	})

	convey.Convey("Given runs saved with the same timestamp", t, func() {
		ctx := context.Background()
		s := repository.NewMemoryStore()
		ids := []string{"a", "b", "c", "d", "e", "f"}
		for _, id := range ids {
			convey.So(s.Save(ctx, sampleRun(id, 0)), convey.ShouldBeNil)
		}

		convey.Convey("Then they are listed latest save first, every time", func() {
			for i := 0; i < 20; i++ {
				list, err := s.List(ctx, 10)
				convey.So(err, convey.ShouldBeNil)
				got := make([]string, 0, len(list))
				for _, r := range list {
					got = append(got, r.ID)
				}
				convey.So(got, convey.ShouldResemble, []string{"f", "e", "d", "c", "b", "a"})
			}
		})
	})
}

func TestPostgresStore(t *testing.T) {
	convey.Convey("Given a Postgres store on a mocked pool", t, func() {
		mock, err := pgxmock.NewPool()
		convey.So(err, convey.ShouldBeNil)
		defer mock.Close()
		ctx := context.Background()
		s := repository.NewPostgresStore(mock, 50, logger.NewNop())

		convey.Convey("When migrating", func() {
			mock.ExpectExec("CREATE TABLE IF NOT EXISTS fraud_runs").
				WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

			convey.So(s.Migrate(ctx), convey.ShouldBeNil)
			convey.So(mock.ExpectationsWereMet(), convey.ShouldBeNil)
		})

		convey.Convey("When saving a run", func() {
			r := sampleRun("r1", 0)
			args := []any{"r1", "r1.csv", r.CreatedAt, "alerts_dispatched"}
			for i := 0; i < 5; i++ {
				args = append(args, pgxmock.AnyArg())
			}
			args = append(args, 2, 1, 1, 0)
			mock.ExpectExec("INSERT INTO fraud_runs").WithArgs(args...).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			mock.ExpectExec("DELETE FROM fraud_runs").WithArgs(50).
				WillReturnResult(pgxmock.NewResult("DELETE", 3))

			convey.Convey("Then it upserts and prunes history", func() {
				convey.So(s.Save(ctx, r), convey.ShouldBeNil)
				convey.So(mock.ExpectationsWereMet(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the insert fails", func() {
			mock.ExpectExec("INSERT INTO fraud_runs").WillReturnError(errors.New("connection reset"))

			convey.Convey("Then the error is returned with the operation", func() {
				err := s.Save(ctx, sampleRun("r1", 0))
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "repository.Save")
			})
		})

		convey.Convey("When getting a stored run", func() {
			rows := mock.NewRows([]string{"id", "filename", "created_at", "stage", "columns", "rows", "predictions", "dropped", "alerts"}).
				AddRow("r1", "r1.csv", epoch, "alerts_dispatched",
					[]byte(`["amount","Prediction"]`),
					[]byte(`[["10","0"],["100","1"]]`),
					[]byte(`[0,1]`),
					[]byte(`["type_DEBIT"]`),
					[]byte(`{"attempted":1,"delivered":1,"duration_ns":0}`),
				)
			mock.ExpectQuery("SELECT id, filename, created_at, stage, columns").WithArgs("r1").WillReturnRows(rows)

			r, err := s.Get(ctx, "r1")

			convey.Convey("Then the labeled table is rebuilt", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Stage, convey.ShouldEqual, model.StageAlertsDispatched)
				convey.So(r.Labeled.Table.Columns, convey.ShouldResemble, []string{"amount", "Prediction"})
				convey.So(r.Labeled.Frauds(), convey.ShouldResemble, []int{1})
				convey.So(r.Dropped, convey.ShouldResemble, []string{"type_DEBIT"})
				convey.So(r.Alerts.Delivered, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When getting an unknown run", func() {
			mock.ExpectQuery("SELECT id, filename, created_at, stage, columns").WithArgs("nope").WillReturnError(pgx.ErrNoRows)

			_, err := s.Get(ctx, "nope")

			convey.Convey("Then ErrNotFound is returned", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When listing runs", func() {
			rows := mock.NewRows([]string{"id", "filename", "created_at", "stage", "row_count", "fraud_count", "alerts_delivered", "alerts_failed"}).
				AddRow("r2", "b.csv", epoch, "alerts_dispatched", 10, 2, 1, 1).
				AddRow("r1", "a.csv", epoch.Add(-time.Hour), "alerts_dispatched", 5, 0, 0, 0)
			mock.ExpectQuery("SELECT id, filename, created_at, stage, row_count").WithArgs(5).WillReturnRows(rows)

			list, err := s.List(ctx, 5)

			convey.Convey("Then summaries come back in order", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(list, convey.ShouldHaveLength, 2)
				convey.So(list[0].ID, convey.ShouldEqual, "r2")
				convey.So(list[0].Failed, convey.ShouldEqual, 1)
				convey.So(mock.ExpectationsWereMet(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When counting runs", func() {
			mock.ExpectQuery(`SELECT count\(\*\) FROM fraud_runs`).
				WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

			convey.So(s.Count(ctx), convey.ShouldEqual, 3)
		})
	})
}
