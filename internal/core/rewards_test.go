package core

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func tx(id, customer int64, amount string, date Date) Transaction {
	return Transaction{
		ID:         id,
		CustomerID: customer,
		Amount:     decimal.RequireFromString(amount),
		Date:       date,
	}
}

func sampleTransactions() []Transaction {
	return []Transaction{
		tx(1, 1, "120", NewDate(2023, 1, 15)),
		tx(2, 1, "80", NewDate(2023, 2, 20)),
		tx(3, 1, "200", NewDate(2023, 3, 10)),
	}
}

func TestAggregate(t *testing.T) {
	got := Aggregate(sampleTransactions())

	want := RewardResult{
		MonthlyPoints: MonthlyPoints{"JANUARY": 90, "FEBRUARY": 30, "MARCH": 250},
		TotalPoints:   370,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Aggregate() = %+v, want %+v", got, want)
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil)
	if got.TotalPoints != 0 {
		t.Errorf("TotalPoints = %d, want 0", got.TotalPoints)
	}
	if got.MonthlyPoints == nil || len(got.MonthlyPoints) != 0 {
		t.Errorf("MonthlyPoints = %v, want empty map", got.MonthlyPoints)
	}

	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"monthlyPoints":{},"totalPoints":0}` {
		t.Errorf("Marshal() = %s", b)
	}
}

func TestAggregate_SumsAgree(t *testing.T) {
	txs := []Transaction{
		tx(1, 1, "120.75", NewDate(2023, 1, 2)),
		tx(2, 1, "49", NewDate(2023, 1, 3)),
		tx(3, 1, "101", NewDate(2023, 2, 4)),
		tx(4, 1, "75.30", NewDate(2023, 2, 5)),
		tx(5, 1, "-20", NewDate(2023, 3, 6)),
	}
	got := Aggregate(txs)

	sumPoints := 0
	for _, x := range txs {
		sumPoints += Points(x.Amount)
	}
	sumMonthly := 0
	for _, p := range got.MonthlyPoints {
		sumMonthly += p
	}
	if got.TotalPoints != sumPoints || got.TotalPoints != sumMonthly {
		t.Errorf("TotalPoints = %d, sum of points = %d, sum of months = %d", got.TotalPoints, sumPoints, sumMonthly)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	txs := sampleTransactions()
	want := Aggregate(txs)

	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range permutations {
		shuffled := []Transaction{txs[p[0]], txs[p[1]], txs[p[2]]}
		if got := Aggregate(shuffled); !reflect.DeepEqual(got, want) {
			t.Errorf("Aggregate(%v) = %+v, want %+v", p, got, want)
		}
	}
}

func TestAggregate_SameMonthAccumulates(t *testing.T) {
	got := Aggregate([]Transaction{
		tx(1, 1, "120", NewDate(2023, 1, 1)),
		tx(2, 1, "120", NewDate(2023, 1, 31)),
	})
	if got.MonthlyPoints["JANUARY"] != 180 || got.TotalPoints != 180 {
		t.Errorf("Aggregate() = %+v, want JANUARY 180", got)
	}
}

func TestAggregateAll(t *testing.T) {
	txs := []Transaction{
		tx(1, 1, "120", NewDate(2023, 1, 15)),
		tx(2, 1, "80", NewDate(2023, 2, 20)),
		tx(3, 2, "200", NewDate(2023, 3, 10)),
	}

	got := AggregateAll(txs)

	want := CustomerRewards{
		1: {MonthlyPoints: MonthlyPoints{"JANUARY": 90, "FEBRUARY": 30}, TotalPoints: 120},
		2: {MonthlyPoints: MonthlyPoints{"MARCH": 250}, TotalPoints: 250},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AggregateAll() = %+v, want %+v", got, want)
	}

	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	wantJSON := `{"1":{"monthlyPoints":{"FEBRUARY":30,"JANUARY":90},"totalPoints":120},"2":{"monthlyPoints":{"MARCH":250},"totalPoints":250}}`
	if string(b) != wantJSON {
		t.Errorf("Marshal() = %s, want %s", b, wantJSON)
	}
}

func TestAggregateAll_Empty(t *testing.T) {
	if got := AggregateAll(nil); len(got) != 0 {
		t.Errorf("AggregateAll(nil) = %v, want empty", got)
	}
}

func TestRewardResultMerge(t *testing.T) {
	var r RewardResult
	r.Merge(Aggregate(sampleTransactions()[:1]))
	r.Merge(Aggregate(sampleTransactions()[1:]))

	if !reflect.DeepEqual(r, Aggregate(sampleTransactions())) {
		t.Errorf("Merge() = %+v, want %+v", r, Aggregate(sampleTransactions()))
	}
}
