package core

import "testing"

func TestWeekOf(t *testing.T) {
	// 2024-06-01 is a Saturday.
	w := WeekOf(NewDate(2024, 6, 1))
	if w.From != NewDate(2024, 5, 27) || w.To != NewDate(2024, 6, 2) {
		t.Fatalf("unexpected week %s..%s", w.From, w.To)
	}
	// Monday maps to itself.
	w = WeekOf(NewDate(2024, 6, 3))
	if w.From != NewDate(2024, 6, 3) {
		t.Fatalf("monday should start its own week, got %s", w.From)
	}
	if len(w.Days()) != 7 {
		t.Fatalf("expected 7 days, got %d", len(w.Days()))
	}
	if w.Previous().To != NewDate(2024, 6, 2) {
		t.Fatalf("previous week should end on sunday before, got %s", w.Previous().To)
	}
}

func TestSummarize(t *testing.T) {
	food := Category{ID: 1, Name: "Food", Color: Red}
	rent := Category{ID: 2, Name: "Rent", Color: Blue}
	p := WeekOf(NewDate(2024, 6, 1))
	entries := []Entry{
		{Type: Expense, Amount: Money{Cents: 1000}, Date: NewDate(2024, 6, 1), CategoryID: 1, Category: food},
		{Type: Expense, Amount: Money{Cents: 500}, Date: NewDate(2024, 5, 28), CategoryID: 2, Category: rent},
		{Type: Expense, Amount: Money{Cents: 250}, Date: NewDate(2024, 5, 27), CategoryID: 1, Category: food},
		{Type: Income, Amount: Money{Cents: 5000}, Date: NewDate(2024, 5, 30), CategoryID: 3},
		{Type: Expense, Amount: Money{Cents: 9999}, Date: NewDate(2024, 6, 3), CategoryID: 1, Category: food},
	}
	s := Summarize(p, entries)
	if s.Income.Cents != 5000 || s.Expense.Cents != 1750 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.Balance().Cents != 3250 {
		t.Fatalf("unexpected balance %d", s.Balance().Cents)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0].Amount.Cents != 1250 {
		t.Fatalf("unexpected category breakdown: %+v", s.ByCategory)
	}
}
