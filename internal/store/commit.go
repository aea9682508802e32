package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered data from a BatchedStore into SQLite
// within a single transaction. Fake (negative) IDs are remapped to real
// (positive, AUTOINCREMENT) IDs, and all FK references within the batch
// are rewritten using the fakeToReal mapping.
//
// Insert order respects FK dependencies:
//  1. Classes (depend on file_id, which is already real, and on
//     outer_class_id, which is always buffered before its nested rows)
//  2. Members (depend on class_id)
//  3. Params (depend on member_id)
func (s *Store) CommitBatch(batch *BatchedStore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)

	// 1. Classes
	for _, c := range batch.Classes {
		if c.OuterClassID != nil && *c.OuterClassID < 0 {
			realID, ok := fakeToReal[*c.OuterClassID]
			if !ok {
				return fmt.Errorf("commit batch: class %q has outer_class_id=%d not in fakeToReal map", c.FQName, *c.OuterClassID)
			}
			c.OuterClassID = &realID
		}
		realID, err := insertClassTx(tx, &c)
		if err != nil {
			return fmt.Errorf("commit batch: class %q: %w", c.FQName, err)
		}
		fakeToReal[c.ID] = realID
	}

	// 2. Members
	for _, m := range batch.Members {
		if m.ClassID < 0 {
			realID, ok := fakeToReal[m.ClassID]
			if !ok {
				return fmt.Errorf("commit batch: member %q has class_id=%d not in fakeToReal map (have %d classes)", m.Name, m.ClassID, len(batch.Classes))
			}
			m.ClassID = realID
		}
		realID, err := insertMemberTx(tx, &m)
		if err != nil {
			return fmt.Errorf("commit batch: member %q: %w", m.Name, err)
		}
		fakeToReal[m.ID] = realID
	}

	// 3. Params
	for _, p := range batch.Params {
		if p.MemberID < 0 {
			p.MemberID = fakeToReal[p.MemberID]
		}
		if _, err := insertParamTx(tx, &p); err != nil {
			return fmt.Errorf("commit batch: param %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

func insertClassTx(tx *sql.Tx, c *Class) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO classes (file_id, fq_name, name, package, kind, visibility, modifiers,
		 is_primary, is_holder, type_params, supertypes, signature_hash, outer_class_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.FileID, c.FQName, c.Name, c.Package, c.Kind, c.Visibility, marshalModifiers(c.Modifiers),
		c.Primary, c.Holder, c.TypeParams, c.Supertypes, c.SignatureHash, c.OuterClassID,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertMemberTx(tx *sql.Tx, m *Member) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO members (class_id, name, kind, ordinal, visibility, modifiers, type_expr,
		 type_params, is_synthetic, has_body, property_accessor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ClassID, m.Name, m.Kind, m.Ordinal, m.Visibility, marshalModifiers(m.Modifiers), m.TypeExpr,
		m.TypeParams, m.Synthetic, m.HasBody, m.PropertyAccessor,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertParamTx(tx *sql.Tx, p *Param) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO member_params (member_id, name, ordinal, type_expr, is_receiver)
		 VALUES (?, ?, ?, ?, ?)`,
		p.MemberID, p.Name, p.Ordinal, p.TypeExpr, p.IsReceiver,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
