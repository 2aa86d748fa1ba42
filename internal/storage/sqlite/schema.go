package sqlite

const schema = `
-- Branches table: one row per branch
CREATE TABLE IF NOT EXISTS branches (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL CHECK(length(name) <= 200),
    slug TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    owner_id TEXT NOT NULL,
    base_ref TEXT NOT NULL,
    base_commit TEXT NOT NULL DEFAULT '',
    head_commit TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'draft',
    visibility TEXT NOT NULL DEFAULT 'private',
    -- 0 means "unset"; consumers apply the default threshold
    required_approvals INTEGER NOT NULL DEFAULT 0
        CHECK(required_approvals = 0 OR (required_approvals >= 1 AND required_approvals <= 10)),
    labels TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    submitted_at DATETIME,
    approved_at DATETIME,
    published_at DATETIME,
    archived_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_branches_state ON branches(state);
CREATE INDEX IF NOT EXISTS idx_branches_owner ON branches(owner_id);
CREATE INDEX IF NOT EXISTS idx_branches_visibility ON branches(visibility);

-- Reviewer/collaborator membership. A single table with a role column and a
-- (branch_id, user_id) primary key makes the mutual-exclusion invariant a
-- database constraint: a user cannot hold both roles on one branch.
CREATE TABLE IF NOT EXISTS branch_members (
    branch_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('reviewer', 'collaborator')),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (branch_id, user_id),
    FOREIGN KEY (branch_id) REFERENCES branches(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_members_user ON branch_members(user_id);

-- Append-only transition log. Rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS branch_transitions (
    id TEXT PRIMARY KEY,
    branch_id TEXT NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    event TEXT NOT NULL DEFAULT '',
    actor_id TEXT NOT NULL DEFAULT '',
    actor_type TEXT NOT NULL DEFAULT 'user',
    reason TEXT NOT NULL DEFAULT '',
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (branch_id) REFERENCES branches(id)
);

CREATE INDEX IF NOT EXISTS idx_transitions_branch ON branch_transitions(branch_id, created_at);

-- Key/value configuration
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
