package postgres

const queryInsertRound = `
INSERT INTO rounds (id, target_at, prefix, node_count, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const queryInsertRoundResult = `
INSERT INTO round_results (id, round_id, node_host, node_port, status, detail, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
