package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_current_version",
			SQL: `SELECT session_id, COUNT(*) FROM protocol_versions
                  WHERE is_current_version
                  GROUP BY session_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_contiguous_versions",
			SQL: `SELECT session_id FROM protocol_versions
                  GROUP BY session_id
                  HAVING MIN(version) <> 1 OR MAX(version) <> COUNT(*)`,
		},
		{
			Name: "O3_creation_order_matches_numeric",
			SQL: `WITH ordered AS (
                      SELECT session_id, version, created_at,
                             LAG(created_at) OVER (PARTITION BY session_id ORDER BY version) AS prev
                      FROM protocol_versions)
                  SELECT * FROM ordered WHERE prev IS NOT NULL AND created_at < prev`,
		},
		{
			Name: "O4_versions_write_once",
			SQL:  `SELECT id FROM protocol_versions WHERE updated_at <> created_at`,
		},
		{
			Name: "O5_snapshot_on_signed",
			SQL: `SELECT id FROM discussion_sessions
                  WHERE status = 'signed' AND protocol <> '' AND protocol_snapshot IS NULL`,
		},
		{
			Name: "O6_signed_session_stamped",
			SQL: `SELECT id FROM discussion_sessions
                  WHERE status = 'signed' AND (signed_at IS NULL OR signed_by IS NULL)`,
		},
		{
			Name: "O7_signed_decision_never_deleted",
			SQL:  `SELECT id FROM decisions WHERE status = 'signed' AND is_deleted`,
		},
		{
			Name: "O8_revocation_links_reciprocal",
			SQL: `SELECT t.id FROM decisions t
                  JOIN decisions r ON r.id = t.revoking_decision_id
                  WHERE r.revoked_by_decision_id IS DISTINCT FROM t.id
                  UNION ALL
                  SELECT r.id FROM decisions r
                  JOIN decisions t ON t.id = r.revoked_by_decision_id
                  WHERE t.revoking_decision_id IS DISTINCT FROM r.id`,
		},
		{
			Name: "O9_open_draft_ceiling",
			SQL: `SELECT created_by, COUNT(*) FROM decisions
                  WHERE status = 'draft' AND NOT is_deleted
                  GROUP BY created_by HAVING COUNT(*) > 4`,
		},
		{
			Name: "O10_guardrail_triggers_present",
			SQL: `SELECT 'missing_freeze_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'freeze_protocol_versions')
                  UNION ALL
                  SELECT 'missing_no_delete_trigger'
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'no_delete_signed_decisions')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
