package db

// SchemaSQL defines the conversation, message and meal tables.
//
// Messages are append-only. Their timestamp defaults to time::now() so the
// server assigns it; per conversation the (conversation, timestamp) index
// serves every "latest/previous message" lookup as a range query. The log
// order is the only synchronization primitive the pipeline has.
const SchemaSQL = `
    -- ==========================================================================
    -- CONVERSATION TABLE (one per user, record id = user id)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS created ON conversation TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON conversation TYPE datetime DEFAULT time::now();

    -- ==========================================================================
    -- MESSAGE TABLE (append-only, ordered by server-assigned timestamp)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON message TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS role ON message TYPE string ASSERT $value IN ["user", "assistant"];
    DEFINE FIELD IF NOT EXISTS kind ON message TYPE string ASSERT $value IN ["text", "image", "confirmation"];
    DEFINE FIELD IF NOT EXISTS text ON message TYPE string;
    DEFINE FIELD IF NOT EXISTS timestamp ON message TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS image_url ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS food_description ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS food_items ON message TYPE option<array<string>>;
    DEFINE FIELD IF NOT EXISTS estimated_calories ON message TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS confidence_score ON message TYPE option<float>;
    DEFINE FIELD IF NOT EXISTS linked_vision_message_id ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS linked_image_message_id ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS meal_logged ON message TYPE option<bool>;
    DEFINE FIELD IF NOT EXISTS meal_id ON message TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS macros ON message TYPE option<object> FLEXIBLE;

    DEFINE INDEX IF NOT EXISTS message_conversation_ts ON message FIELDS conversation, timestamp;

    -- ==========================================================================
    -- MEAL TABLE (immutable once created)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS meal SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON meal TYPE string;
    DEFINE FIELD IF NOT EXISTS conversation ON meal TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS image_message_id ON meal TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS vision_message_id ON meal TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS food_items ON meal TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS estimated_calories ON meal TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS macros ON meal TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS created ON meal TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS meal_user ON meal FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS meal_created ON meal FIELDS created;
`
