package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Automations, immutable versions and event triggers
			CREATE TABLE automations (
				id TEXT PRIMARY KEY,
				tenant_id TEXT NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT true,
				published_version INTEGER,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automations_tenant_id ON automations(tenant_id);
			CREATE INDEX idx_automations_created_at ON automations(created_at);

			CREATE TABLE automation_versions (
				automation_id TEXT NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				version INTEGER NOT NULL CHECK (version > 0),
				definition JSONB NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (automation_id, version)
			);

			CREATE TABLE automation_triggers (
				id TEXT PRIMARY KEY,
				automation_id TEXT NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				node_id TEXT NOT NULL DEFAULT '',
				event_key VARCHAR(255) NOT NULL,
				workflow_id TEXT NOT NULL DEFAULT '',
				stage_id TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_triggers_automation_id ON automation_triggers(automation_id);
			CREATE INDEX idx_automation_triggers_event ON automation_triggers(event_key, workflow_id, stage_id);
		`,
		2: `
			-- Run audit trail
			CREATE TABLE automation_runs (
				id TEXT PRIMARY KEY,
				automation_id TEXT NOT NULL REFERENCES automations(id) ON DELETE CASCADE,
				version INTEGER NOT NULL,
				tenant_id TEXT NOT NULL DEFAULT '',
				subject_type VARCHAR(100) NOT NULL DEFAULT '',
				subject_id TEXT NOT NULL DEFAULT '',
				event_key VARCHAR(255) NOT NULL DEFAULT '',
				event_id TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('queued', 'running', 'succeeded', 'failed')),
				pending_nodes INTEGER NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_automation_runs_automation_id ON automation_runs(automation_id, created_at DESC);
			CREATE INDEX idx_automation_runs_status ON automation_runs(status, created_at);

			CREATE TABLE automation_node_runs (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL REFERENCES automation_runs(id) ON DELETE CASCADE,
				node_id TEXT NOT NULL,
				node_type VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('skipped', 'success', 'error', 'dry_run')),
				attempts INTEGER NOT NULL DEFAULT 0,
				input JSONB,
				output JSONB,
				error TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				seq BIGSERIAL
			);

			CREATE INDEX idx_automation_node_runs_run_id ON automation_node_runs(run_id, seq);
		`,
		3: `
			-- Workflow records automations read and move
			CREATE TABLE workflow_stages (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				name VARCHAR(255) NOT NULL,
				position INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE workflow_jobs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				stage_id TEXT NOT NULL,
				title VARCHAR(255) NOT NULL DEFAULT '',
				priority VARCHAR(50) NOT NULL DEFAULT '',
				due_date VARCHAR(50) NOT NULL DEFAULT '',
				contact JSONB,
				invoice JSONB
			);

			CREATE INDEX idx_workflow_jobs_stage_id ON workflow_jobs(stage_id);

			CREATE TABLE users (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL
			);
		`,
		4: `
			-- Node runs are stored while the node executes
			ALTER TABLE automation_node_runs DROP CONSTRAINT automation_node_runs_status_check;
			ALTER TABLE automation_node_runs ADD CONSTRAINT automation_node_runs_status_check
				CHECK (status IN ('running', 'skipped', 'success', 'error', 'dry_run'));
		`,
	}
}
