package repository

import "fmt"

// SchemaStatements returns idempotent DDL for all tables. ReplacingMergeTree
// keyed on updated_at lets mutable rows be rewritten by full re-insert; reads
// go through FINAL.
func SchemaStatements(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.sessions (
			market String,
			symbol String,
			session_no Int64,
			signal String,
			outcome String,
			entry Float64,
			target_high Float64,
			target_low Float64,
			hit_price Float64,
			hit_type String,
			hit_at DateTime64(3),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			high_move_pct Float64,
			low_move_pct Float64,
			close_pct Float64,
			below_high_pct Float64,
			above_low_pct Float64,
			range_value Float64,
			range_pct Float64,
			week52_high Float64,
			week52_low Float64,
			volume Float64,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (market, session_no, symbol)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars_1m (
			minute DateTime,
			symbol String,
			market String,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			bid Float64,
			ask Float64,
			spread Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, minute)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rolling_24h (
			session_no Int64,
			symbol String,
			high Float64,
			low Float64,
			range_value Float64,
			range_pct Float64,
			volume Float64,
			updated_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (session_no, symbol)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.rolling_52w (
			symbol String,
			high Float64,
			high_at DateTime64(3),
			low Float64,
			low_at DateTime64(3)
		) ENGINE = ReplacingMergeTree
		ORDER BY symbol`, db),
	}
}
