package registry

import "fmt"

func str(name, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindString, Description: description}
}

func enum(name, description string, values ...string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindString, Description: description, Enum: values}
}

func boolean(name, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindBool, Description: description}
}

func integer(name, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindInt, Description: description}
}

func datetime(name, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindDateTime, Description: description}
}

func score(name, description string) FieldSpec {
	return FieldSpec{Name: name, Kind: KindFloat, Description: description, Score: true}
}

// CrimeCategories are the detective-story entity categories.
func CrimeCategories() []CategorySchema {
	return []CategorySchema{
		{
			Name:        "Person",
			Description: "A person involved in a detective case (suspect, victim, witness, investigator, or other role).",
			Fields: []FieldSpec{
				str("full_name", "Full name of the person as mentioned in the case materials."),
				str("alias", "Alternative name, nickname, or title used for this person in the narrative."),
				str("role_in_case", "High-level role in the investigation (for example: suspect, victim, witness, inspector)."),
				integer("age", "Approximate age of the person at the time of the main events."),
				str("occupation", "Primary job or occupation as described in the story."),
				str("primary_location", "Main location associated with this person (for example: home or workplace)."),
				boolean("is_victim", "True if this person is explicitly described as a victim of a crime or attack."),
				boolean("is_suspect", "True if this person is explicitly considered a suspect in the investigation."),
				boolean("is_witness", "True if this person provides testimony or is described as having seen relevant events."),
			},
		},
		{
			Name:        "Statement",
			Description: "A spoken or written statement, quote, or testimony relevant to solving the case.",
			Fields: []FieldSpec{
				str("text", "Exact or approximate content of the statement as it appears in the text."),
				boolean("is_direct_quote", "True if the statement is presented as a direct quotation with quotation marks."),
				boolean("is_under_oath", "True if the statement is given as formal testimony (for example, in court or to the police)."),
				str("source_document_id", "Identifier of the source document or chapter where this statement appears, if available."),
				integer("paragraph_index", "Zero-based index of the paragraph in which the statement appears, when known."),
			},
		},
		{
			Name:        "Location",
			Description: "A physical location referenced in the case, such as rooms, buildings, streets, or cities.",
			Fields: []FieldSpec{
				str("label", "Short label for the location (for example: 'study', 'garden', 'opera house')."),
				str("address", "Full or partial address of the location when provided in the text."),
				str("building_name", "Name of the building or estate, if applicable."),
				str("room_name", "Name or description of the specific room or interior area within a building."),
				str("city", "City or town in which this location is situated, if known."),
				str("country", "Country of the location, when specified."),
				boolean("is_crime_scene", "True if this location is explicitly described as a scene of a crime, attack, or major event."),
			},
		},
		{
			Name:        "Event",
			Description: "An event relevant to the investigation, such as murders, robberies, meetings, or alibi intervals.",
			Fields: []FieldSpec{
				str("event_type", "Short label describing the event type (for example: 'murder', 'robbery', 'alibi_interval')."),
				str("event_description", "Narrative description of the event as inferred from the text."),
				datetime("start_time", "Approximate start time of the event when it can be inferred or is explicitly mentioned."),
				datetime("end_time", "Approximate end time of the event, if it spans a period of time."),
				boolean("is_crime", "True if this event is itself a crime or attempted crime."),
				boolean("is_confirmed", "True if the narrator treats the event as factual rather than hypothetical or speculative."),
			},
		},
		{
			Name:        "Object",
			Description: "A physical object relevant to the case, such as weapons, tools, documents, or personal items.",
			Fields: []FieldSpec{
				str("label", "Short name or label for the object (for example: 'revolver', 'teacup', 'watch')."),
				str("object_category", "Category of object (for example: 'weapon', 'document', 'clothing', 'tool')."),
				str("material", "Primary material of the object (for example: 'metal', 'glass', 'paper')."),
				boolean("is_weapon", "True if the object is used or suspected to be used as a weapon."),
				boolean("is_personal_item", "True if this object is personally associated with a specific character (for example: jewelry, watch)."),
			},
		},
		{
			Name:        "Evidence",
			Description: "A piece of evidence collected or inferred in the investigation, physical or informational.",
			Fields: []FieldSpec{
				str("evidence_type", "Type of evidence (for example: 'fingerprint', 'footprint', 'document', 'forensic_report')."),
				str("evidence_description", "Short explanation of what this evidence is and why it matters."),
				datetime("collected_at", "Timestamp when the evidence is collected, if explicitly known."),
				str("collected_by", "Name or role of the person who collected the evidence (for example: 'Holmes', 'inspector')."),
				str("chain_of_custody_id", "Identifier tracking how this evidence moves between people or locations, if modeled."),
				score("reliability_score", "Normalized confidence score between 0.0 and 1.0 expressing how reliable this piece of evidence appears."),
			},
		},
		{
			Name:        "Organization",
			Description: "An organization appearing in the case, such as police forces, companies, or criminal groups.",
			Fields: []FieldSpec{
				str("org_name", "Full name of the organization as mentioned in the story."),
				str("org_type", "Kind of organization (for example: 'police', 'bank', 'criminal_group', 'family')."),
				str("jurisdiction", "Geographical or legal area in which the organization operates."),
				str("industry", "Main industry or activity of the organization where applicable (for example: 'finance', 'law enforcement')."),
			},
		},
	}
}

// CrimeEdgeTypes are the detective-story relations.
func CrimeEdgeTypes() []EdgeTypeSchema {
	return []EdgeTypeSchema{
		{
			Name:        "StatementAttribution",
			Description: "Assigns a statement to the person who produced it, including the speech act type.",
			Fields: []FieldSpec{
				enum("speech_act_type", "Use 'said' for informal quotes, 'testified' for formal testimony, and 'denied' when the statement explicitly rejects a claim.", "said", "testified", "denied"),
				boolean("is_explicit", "True if the text explicitly attributes the statement to the person, false if it is inferred."),
				score("confidence_score", "Normalized confidence between 0.0 and 1.0 that this attribution is correct."),
				str("source_reference", "Optional reference to the passage or document that supports this attribution."),
			},
		},
		{
			Name:        "StatementResponse",
			Description: "One statement responds to or follows from another statement.",
			Fields: []FieldSpec{
				enum("response_type", "Use 'responded_to' for direct answers, 'follow_up' for continuation, 'agreement' or 'disagreement' when explicitly indicated.", "responded_to", "follow_up", "agreement", "disagreement"),
				boolean("is_direct", "True if the response is immediate and clearly linked in the dialogue."),
				str("justification", "Short natural language explanation of how the text indicates this response relationship."),
			},
		},
		{
			Name:        "StatementReference",
			Description: "A statement refers to, describes, or accuses another entity or event.",
			Fields: []FieldSpec{
				enum("reference_type", "Role of the target in relation to the statement.", "refers_to", "describes", "accuses", "supports", "contradicts"),
				score("salience_score", "Normalized score between 0.0 and 1.0 representing how central this target is to the statement."),
				str("explanation", "Short explanation of why the statement is linked to this target in this way."),
			},
		},
		{
			Name:        "Motive",
			Description: "Connects a person to an event they have a reason to cause.",
			Fields: []FieldSpec{
				str("motive_type", "Type of motive (for example: 'financial', 'revenge', 'jealousy', 'self_preservation')."),
				score("strength_score", "Normalized score between 0.0 and 1.0 indicating how strong the motive appears in the text."),
				str("supporting_statement_id", "Identifier of a key statement that expresses or reveals this motive, when available."),
				str("explanation", "Short explanation of why this person is considered to have a motive for this event."),
			},
		},
		{
			Name:        "Alibi",
			Description: "A person's claimed or verified absence from an event.",
			Fields: []FieldSpec{
				str("location_description", "Where the person claims to have been during the relevant event."),
				datetime("start_time", "Start of the time interval covered by the alibi, when it can be inferred."),
				datetime("end_time", "End of the time interval covered by the alibi, when it can be inferred."),
				boolean("is_verified", "True if the alibi is supported by independent evidence in the narrative."),
				str("verification_source", "Source that verifies or falsifies this alibi (for example: 'ticket stub', 'witness testimony')."),
			},
		},
		{
			Name:        "Means",
			Description: "Links an object to an event where it is used as a tool, weapon, or mechanism.",
			Fields: []FieldSpec{
				str("means_role", "Role of the object in the event (for example: 'weapon', 'delivery_method')."),
				score("lethality_score", "Normalized score between 0.0 and 1.0 indicating how dangerous or decisive the means appears."),
				str("explanation", "Short explanation of how the object functions as a means in the event."),
			},
		},
		{
			Name:        "Opportunity",
			Description: "Connects a person to an event they could realistically have carried out.",
			Fields: []FieldSpec{
				datetime("window_start", "Earliest plausible time at which the person could have acted in relation to the event."),
				datetime("window_end", "Latest plausible time at which the person could have acted in relation to the event."),
				boolean("is_unique", "True if the narrative suggests few or no other people had a similar opportunity."),
				str("explanation", "How the person's location and timing create an opportunity for this event."),
			},
		},
		{
			Name:        "Presence",
			Description: "Links a person to a location or event where they are described as being present.",
			Fields: []FieldSpec{
				enum("presence_type", "Use 'present_at' for critical moments and 'visited' for more general or earlier visits.", "present_at", "visited"),
				datetime("arrival_time", "Approximate time the person arrived at the location or event."),
				datetime("departure_time", "Approximate time the person left the location or event."),
				boolean("is_confirmed", "True if the presence is confirmed by narration or multiple sources rather than speculation."),
				str("explanation", "Short explanation describing the evidence for this presence relationship."),
			},
		},
		{
			Name:        "Suspicion",
			Description: "Links a person to an event they are suspected of causing or participating in.",
			Fields: []FieldSpec{
				score("suspicion_level", "Normalized score between 0.0 and 1.0 indicating the intensity of suspicion in the narrative."),
				boolean("is_official", "True if suspicion is held by official investigators rather than only by private characters."),
				str("explanation", "Short explanation of why this person is suspected in relation to this event."),
			},
		},
		{
			Name:        "EvidenceLink",
			Description: "Links a piece of evidence to a person, event, location, or object.",
			Fields: []FieldSpec{
				enum("link_type", "Use 'evidence_of' for direct linkage, 'supports' for corroborating evidence, and 'contradicts' for evidence that undermines a claim or alibi.", "evidence_of", "supports", "contradicts"),
				score("reliability_score", "Normalized confidence between 0.0 and 1.0 that this evidence correctly relates to the target."),
				str("explanation", "Short explanation describing how the evidence connects to the target entity or event."),
			},
		},
	}
}

// EdgeRule allows Types from Source to Target.
type EdgeRule struct {
	Source string   `yaml:"source" json:"source" validate:"required"`
	Target string   `yaml:"target" json:"target" validate:"required"`
	Types  []string `yaml:"types" json:"types" validate:"required,min=1"`
}

// CrimeEdgeRules is the edge map of the detective-story registry.
func CrimeEdgeRules() []EdgeRule {
	return []EdgeRule{
		{"Person", "Statement", []string{"StatementAttribution"}},
		{"Statement", "Statement", []string{"StatementResponse", "StatementReference"}},
		{"Statement", "Person", []string{"StatementReference"}},
		{"Statement", "Event", []string{"StatementReference"}},
		{"Statement", "Location", []string{"StatementReference"}},
		{"Statement", "Object", []string{"StatementReference"}},
		{"Statement", "Organization", []string{"StatementReference"}},
		{"Statement", "Evidence", []string{"StatementReference"}},
		{"Person", "Event", []string{"Motive", "Alibi", "Opportunity", "Suspicion", "Presence"}},
		{"Person", "Location", []string{"Presence"}},
		{"Object", "Event", []string{"Means"}},
		{"Evidence", "Event", []string{"EvidenceLink"}},
		{"Evidence", "Person", []string{"EvidenceLink"}},
		{"Evidence", "Location", []string{"EvidenceLink"}},
		{"Evidence", "Object", []string{"EvidenceLink"}},
		{"Evidence", "Statement", []string{"EvidenceLink"}},
		{WildcardCategory, WildcardCategory, []string{"EvidenceLink"}},
	}
}

// DefaultCrimeRegistry returns a registry with the detective-story
// categories, edge types and edge map.
func DefaultCrimeRegistry() *Registry {
	r, err := FromDefinition(Definition{
		Categories: CrimeCategories(),
		EdgeTypes:  CrimeEdgeTypes(),
		Edges:      CrimeEdgeRules(),
	})
	if err != nil {
		panic(fmt.Sprintf("registry: built-in crime registry is invalid: %v", err))
	}
	return r
}
