// Package harness runs document persistence scenarios against a real backend.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog: path/to/catalog   # optional; defaults to the embedded Ed-Fi catalog
//	steps:
//	  - op: upsert
//	    as: school
//	    resource: School
//	    identity: { schoolId: "123" }
//	    body: { nameOfInstitution: "Grand Bend" }
//	    expect:
//	      response: INSERT_SUCCESS
//	  - op: upsert
//	    resource: AcademicWeek
//	    identity: { schoolId: "123", weekIdentifier: "W1" }
//	    references:
//	      - resource: School
//	        identity: { schoolId: "123" }
//	  - op: delete
//	    target: school
//	    resource: School
//	    expect:
//	      response: DELETE_FAILURE_REFERENCE
//	      blocking: [AcademicWeek]
//	assertions:
//	  - type: document_count
//	    count: 2
//	  - type: registry_empty
//
// Steps run in order. An upsert step with "as" names the uuid of the
// document it wrote; later update, delete and get steps address documents
// by that name through "target". Reference validation is on unless a step
// sets validate: false.
//
// # Assertion Types
//
//   - document_count: number of stored documents, optionally for one resource
//   - document_exists: a named document is stored
//   - document_absent: a named document is not stored
//   - document_body: subset match on the stored body of a named document
//   - registry_empty: no concurrency registry rows remain
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory database with sequential document
// uuids and a request clock that advances one millisecond per write, so the
// same scenario always produces the same trace. RunWithGolden compares that
// trace against testdata/golden/<name>.golden.
package harness
