package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Reference data and design-time definitions
			CREATE TABLE gateway_types (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(50) NOT NULL UNIQUE CHECK (name IN ('parallel', 'exclusive', 'inclusive'))
			);

			INSERT INTO gateway_types (id, name) VALUES (1, 'parallel'), (2, 'exclusive'), (3, 'inclusive');

			CREATE TABLE gateway_templates (
				id BIGSERIAL PRIMARY KEY,
				gateway_type_id BIGINT NOT NULL REFERENCES gateway_types(id),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				schema_text TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE workflow_templates (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				workflow_errors_subscribers JSONB NOT NULL DEFAULT '[]',
				global_functions JSONB NOT NULL DEFAULT '{}'
			);

			CREATE TABLE workflow_histories (
				id BIGSERIAL PRIMARY KEY,
				workflow_template_id BIGINT NOT NULL REFERENCES workflow_templates(id),
				version INTEGER NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_histories_template ON workflow_histories(workflow_template_id, version DESC);

			-- Workflow instances and their context
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				workflow_template_id BIGINT NOT NULL REFERENCES workflow_templates(id),
				is_error BOOLEAN NOT NULL DEFAULT false,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE
			);

			CREATE INDEX idx_tasks_workflow_id ON tasks(workflow_id);

			CREATE TABLE events (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_events_workflow_id ON events(workflow_id);

			CREATE TABLE documents (
				id VARCHAR(255) PRIMARY KEY,
				task_id VARCHAR(255) REFERENCES tasks(id) ON DELETE CASCADE,
				event_id VARCHAR(255) REFERENCES events(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				data JSONB NOT NULL DEFAULT '{}',
				is_current BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				CHECK (task_id IS NOT NULL OR event_id IS NOT NULL)
			);

			CREATE INDEX idx_documents_task_id ON documents(task_id);
			CREATE INDEX idx_documents_event_id ON documents(event_id);

			-- Records owned by the gateway service
			CREATE TABLE gateways (
				id UUID PRIMARY KEY,
				gateway_template_id BIGINT NOT NULL REFERENCES gateway_templates(id),
				gateway_type_id BIGINT NOT NULL REFERENCES gateway_types(id),
				workflow_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				data JSONB NOT NULL,
				version INTEGER NOT NULL,
				created_by VARCHAR(255) NOT NULL,
				updated_by VARCHAR(255) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_gateways_template_workflow ON gateways(gateway_template_id, workflow_id, created_at DESC);

			CREATE TABLE workflow_debugs (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				service_name VARCHAR(255) NOT NULL,
				data JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE workflow_errors (
				id UUID PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				service_name VARCHAR(255) NOT NULL,
				error TEXT NOT NULL,
				queue_message JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_workflow_errors_workflow_id ON workflow_errors(workflow_id);
		`,
	}
}
