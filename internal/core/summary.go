package core

import "time"

// Period is an inclusive date range. A zero bound is unbounded.
type Period struct {
	From Date
	To   Date
}

// Contains reports whether d falls within the period.
func (p Period) Contains(d Date) bool {
	if !p.From.IsZero() && d.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && d.After(p.To) {
		return false
	}
	return true
}

// WeekOf returns the Monday to Sunday week that contains d.
func WeekOf(d Date) Period {
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDays(-offset)
	return Period{From: start, To: start.AddDays(6)}
}

// Days lists every day of a bounded period.
func (p Period) Days() []Date {
	if p.From.IsZero() || p.To.IsZero() {
		return nil
	}
	var out []Date
	for d := p.From; !d.After(p.To); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

func (p Period) Previous() Period {
	return Period{From: p.From.AddDays(-7), To: p.To.AddDays(-7)}
}

func (p Period) Next() Period {
	return Period{From: p.From.AddDays(7), To: p.To.AddDays(7)}
}

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// PeriodSummary totals the entries of one period.
type PeriodSummary struct {
	Period     Period
	Income     Money
	Expense    Money
	ByCategory []CategoryAmount // expenses only, in first-seen order
}

// Balance is income minus expense.
func (s PeriodSummary) Balance() Money {
	return Money{Cents: s.Income.Cents - s.Expense.Cents}
}

// Summarize totals entries that fall in p.
func Summarize(p Period, entries []Entry) PeriodSummary {
	s := PeriodSummary{Period: p}
	idx := map[int64]int{}
	for _, e := range entries {
		if !p.Contains(e.Date) {
			continue
		}
		if e.Type == Income {
			s.Income = s.Income.Add(e.Amount)
			continue
		}
		s.Expense = s.Expense.Add(e.Amount)
		i, ok := idx[e.CategoryID]
		if !ok {
			i = len(s.ByCategory)
			idx[e.CategoryID] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{Category: e.Category})
		}
		s.ByCategory[i].Amount = s.ByCategory[i].Amount.Add(e.Amount)
	}
	return s
}

// Today returns the current calendar day in loc.
func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}
