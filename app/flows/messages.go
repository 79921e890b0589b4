package flows

// User-facing copy. Kept in one place so wording stays consistent
// across flows.
const (
	msgStart = "Hi! I'm an AI image bot. *Here's what I can do:*\n\n" +
		"/generate — create an image from a text prompt\n" +
		"/transform — edit a photo with a text instruction\n" +
		"/caption — describe what's in a photo\n" +
		"/ocr — read text from a photo\n" +
		"/upscale — enlarge a photo 4x\n" +
		"/ratio — set your preferred image size\n" +
		"/cancel — stop the current operation"

	msgHelp = "*Commands:*\n\n" +
		"/generate — create an image from a text prompt. I'll ask for a size first.\n" +
		"/transform — send me a photo, then tell me how to change it.\n" +
		"/caption — send me a photo and I'll describe it.\n" +
		"/ocr — send me a photo and I'll extract the text in it.\n" +
		"/upscale — send me a photo and I'll enlarge it 4x.\n" +
		"/ratio — choose a default size for generated images.\n" +
		"/cancel — stop whatever we're doing.\n\n" +
		"Generation can take a minute or two — models sometimes need to warm up."

	msgChooseRatio      = "Choose an image size:"
	msgChooseDefault    = "Choose your default image size:"
	msgRatioSaved       = "Got it, I'll use that size by default."
	msgSendPrompt       = "Now send me a prompt describing the image you want."
	msgSendPhoto        = "Send me the photo you want me to work on."
	msgSendEditPrompt   = "Got the photo. Now tell me how to change it."
	msgGenerating       = "Generating your image, this can take a minute..."
	msgTransforming     = "Transforming your photo, hold on..."
	msgCaptioning       = "Looking at your photo..."
	msgReadingText      = "Reading text from your photo..."
	msgUpscaling        = "Upscaling your photo, hold on..."
	msgGenericFailure   = "Something went wrong while processing your request. Please try again later."
	msgOCRUnavailable   = "Text recognition isn't set up on this server yet, sorry."
	msgOCRNoText        = "I couldn't find any readable text in that photo."
	msgCancelled        = "Cancelled. What's next?"
	msgNothingToCancel  = "Nothing to cancel — we weren't doing anything."
	msgExpectedPhoto    = "I'm waiting for a photo. Send one, or /cancel to stop."
	msgExpectedPrompt   = "I'm waiting for a text prompt. Type one, or /cancel to stop."
	msgExpectedRatio    = "Pick a size with the buttons above, or /cancel to stop."
	msgUnknownText      = "I didn't catch that. Try /help to see what I can do."
	msgUnexpectedPhoto  = "Nice photo! Tell me what to do with it: /transform, /caption, /ocr or /upscale."
	msgAdminOnly        = "This command is for the bot admin."
	msgStatsUnavailable = "Stats aren't available: persistence is not configured."
)
